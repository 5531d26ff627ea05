package main

import "github.com/codesynapse/codesynapse/internal/cli"

func main() {
	cli.Execute()
}
