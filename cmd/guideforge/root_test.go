package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{
		"run", "generate", "status", "cancel", "export", "import", "worker-run",
	}, names)
}

func TestWorkerRunSubcommandIsHidden(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "worker-run" {
			require.True(t, c.Hidden)
			return
		}
	}
	t.Fatal("worker-run subcommand not registered")
}
