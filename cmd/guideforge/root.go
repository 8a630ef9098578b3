// Command guideforge is the engine's command-line entry point: it wires
// config, the model client, storage backends, and the browser driver
// factory into a Public API Facade, then exposes run/generate/status/
// cancel/export/import as cobra subcommands plus a hidden worker-run
// subcommand used by the Worker Supervisor's detached child process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile   string
	accountID string
)

var rootCmd = &cobra.Command{
	Use:   "guideforge",
	Short: "guideforge — plan, replay, and narrate interactive web how-to guides",
	Long:  "guideforge drives a browser through recorded or LLM-generated step sequences, emitting a live event stream and a markdown guide on completion.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (optional)")
	rootCmd.PersistentFlags().StringVar(&accountID, "account", "", "account id to scope the session under")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(workerRunCmd())
}

// Execute runs the root cobra command, exiting 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
