package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/guideforge/engine/worker"
)

func generateCmd() *cobra.Command {
	var goal, criteria, startURL string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "explore toward a goal and produce a new script",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			sessionID := uuid.NewString()
			selfExe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve self executable: %w", err)
			}
			sup := worker.NewSupervisor(selfExe, a.ws)
			req := worker.Request{
				Kind: worker.KindGenerate, AccountID: accountID,
				Goal: goal, Criteria: criteria, StartURL: startURL,
			}
			if err := sup.Launch(ctx, sessionID, req); err != nil {
				return fmt.Errorf("launch generate: %w", err)
			}
			fmt.Println(sessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "what the session should accomplish")
	cmd.Flags().StringVar(&criteria, "criteria", "", "success criteria the planner checks against")
	cmd.Flags().StringVar(&startURL, "start-url", "", "URL to begin exploration from")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("start-url")
	return cmd
}
