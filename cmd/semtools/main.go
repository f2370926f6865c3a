package main

import (
	"log"
	"os"

	"github.com/run-llama/semtools/internal/cli"
)

func main() {
	// stdout is reserved for results and protocol output.
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	os.Exit(cli.Execute())
}
