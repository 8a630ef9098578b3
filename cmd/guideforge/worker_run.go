package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guideforge/engine/api"
	"github.com/guideforge/engine/worker"
)

// workerRunCmd is the Worker Supervisor's child process entry point. It is
// never invoked directly by a user; worker.DefaultChildArgs renders the
// flags it parses here. The command blocks until the session it starts
// reaches a terminal state, then exits.
func workerRunCmd() *cobra.Command {
	var (
		kind     string
		session  string
		scriptID string
		baseURL  string
		goal     string
		criteria string
		startURL string
	)

	cmd := &cobra.Command{
		Use:    "worker-run",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			k := worker.Kind(kind)
			run := api.RunRequest{AccountID: accountID, ScriptID: scriptID, BaseURL: baseURL}
			gen := api.GenerateRequest{AccountID: accountID, Goal: goal, SuccessCriteria: criteria, StartURL: startURL}
			if err := worker.RunChild(ctx, a.facade, session, k, run, gen); err != nil {
				return fmt.Errorf("worker-run: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "run|generate")
	cmd.Flags().StringVar(&session, "session", "", "preallocated session id")
	cmd.Flags().StringVar(&scriptID, "script", "", "script id (run)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL override (run)")
	cmd.Flags().StringVar(&goal, "goal", "", "goal (generate)")
	cmd.Flags().StringVar(&criteria, "criteria", "", "success criteria (generate)")
	cmd.Flags().StringVar(&startURL, "start-url", "", "start URL (generate)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
