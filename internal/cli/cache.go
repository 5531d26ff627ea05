package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesynapse/codesynapse/internal/cache"
	"github.com/codesynapse/codesynapse/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the parse cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Remove every cached parse result for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath := "."
		if len(args) == 1 {
			projectPath = args[0]
		}
		projectPath, err := validateProjectPath(projectPath)
		if err != nil {
			return err
		}
		cfg, err := config.LoadConfigWithFile(projectPath, cfgFile)
		if err != nil {
			return err
		}

		parseCache, err := cache.Open(cfg.CachePath(projectPath))
		if err != nil {
			return err
		}
		defer parseCache.Close()

		if err := parseCache.Clear(); err != nil {
			return err
		}
		fmt.Println("Parse cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
