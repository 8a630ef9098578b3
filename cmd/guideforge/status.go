package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "print a session's current snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := a.facade.Status(sessionID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal snapshot: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to query")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func cancelCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "request cooperative cancellation of a running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.facade.Cancel(sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to cancel")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
