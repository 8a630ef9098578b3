package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/guideforge/engine/worker"
)

func runCmd() *cobra.Command {
	var scriptID, baseURL string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "replay a stored script as a new session",
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
			req := worker.Request{Kind: worker.KindRun, AccountID: accountID, ScriptID: scriptID, BaseURL: baseURL}
			if err := sup.Launch(ctx, sessionID, req); err != nil {
				return fmt.Errorf("launch run: %w", err)
			}
			fmt.Println(sessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptID, "script", "", "script id to replay")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "override the script's recorded base URL")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}
