package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codesynapse/codesynapse/internal/analyzer"
	"github.com/codesynapse/codesynapse/internal/cache"
	"github.com/codesynapse/codesynapse/internal/config"
	"github.com/codesynapse/codesynapse/internal/graph"
	"github.com/codesynapse/codesynapse/internal/serializer"
)

var buildFlags struct {
	output     string
	format     string
	signatures bool
	parallel   bool
	workers    int
	noCache    bool
	quiet      bool
}

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Analyze a Python project and write its code graph",
	Long: `Build walks every Python file under the given project path (default:
the current directory), extracts declarations and relationships, and writes
the assembled graph to a JSON or DOT file. The llm format regroups the graph
per module for language-model consumption.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFlags.output, "output", "o", "codesynapse_graph.json", "output file path")
	buildCmd.Flags().StringVar(&buildFlags.format, "format", "json", "output format: json, dot, or llm")
	buildCmd.Flags().BoolVar(&buildFlags.signatures, "signatures", true, "collect signatures and complexity metrics")
	buildCmd.Flags().BoolVar(&buildFlags.parallel, "parallel", false, "force parallel file processing")
	buildCmd.Flags().IntVar(&buildFlags.workers, "workers", 0, "max parallel workers (0 = auto)")
	buildCmd.Flags().BoolVar(&buildFlags.noCache, "no-cache", false, "disable the parse cache")
	buildCmd.Flags().BoolVarP(&buildFlags.quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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
	applyBuildFlags(cmd, cfg)

	opts := analyzer.Options{
		CollectSignatures: cfg.Analysis.CollectSignatures,
		Parallel:          cfg.Analysis.Parallel,
		MaxWorkers:        cfg.Analysis.MaxWorkers,
		IncludePatterns:   cfg.Paths.Include,
		IgnorePatterns:    cfg.Paths.Ignore,
		Progress:          newBuildProgress(buildFlags.quiet),
	}

	if cfg.Cache.Enabled && !buildFlags.noCache {
		parseCache, err := cache.Open(cfg.CachePath(projectPath))
		if err != nil {
			// A broken cache never blocks a build.
			log.Printf("Warning: parse cache unavailable: %v", err)
		} else {
			defer parseCache.Close()
			opts.Cache = parseCache
		}
	}

	nodes, edges, err := analyzer.ParseProject(cmd.Context(), projectPath, opts)
	if err != nil {
		return err
	}
	cg, err := graph.Assemble(nodes, edges)
	if err != nil {
		return err
	}

	if err := writeGraph(cg, projectPath); err != nil {
		return err
	}

	if !buildFlags.quiet {
		fmt.Printf("Graph written to %s: %d nodes, %d edges\n", buildFlags.output, cg.Order(), cg.Size())
	}
	return nil
}

// validateProjectPath resolves and checks the analysis root. A missing or
// non-directory path aborts the run.
func validateProjectPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project path %s does not exist", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path %s is not a directory", abs)
	}
	return abs, nil
}

// applyBuildFlags overlays explicitly set command flags onto the loaded
// configuration.
func applyBuildFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("signatures") {
		cfg.Analysis.CollectSignatures = buildFlags.signatures
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Analysis.Parallel = buildFlags.parallel
	}
	if cmd.Flags().Changed("workers") {
		cfg.Analysis.MaxWorkers = buildFlags.workers
	}
}

func writeGraph(cg *graph.CodeGraph, projectPath string) error {
	out, err := os.Create(buildFlags.output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	switch buildFlags.format {
	case "json":
		return serializer.WriteJSON(out, cg, projectPath, Version)
	case "dot":
		return serializer.WriteDOT(out, cg)
	case "llm":
		return serializer.WriteLLM(out, cg)
	default:
		return fmt.Errorf("unknown output format %q (expected json, dot, or llm)", buildFlags.format)
	}
}
