package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guideforge/engine/script"
)

func exportCmd() *cobra.Command {
	var scriptID, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "export a stored script as neutral JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			sc, ok, err := a.scripts.Get(ctx, scriptID)
			if err != nil {
				return fmt.Errorf("load script: %w", err)
			}
			if !ok {
				return fmt.Errorf("script %q not found", scriptID)
			}
			exp, err := script.ExportScript(sc)
			if err != nil {
				return fmt.Errorf("export script: %w", err)
			}
			out, err := json.MarshalIndent(exp, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal export: %w", err)
			}
			if outPath == "" {
				fmt.Println(string(out))
				return nil
			}
			return os.WriteFile(outPath, out, 0o644)
		},
	}
	cmd.Flags().StringVar(&scriptID, "script", "", "script id to export")
	cmd.Flags().StringVar(&outPath, "out", "", "write to this path instead of stdout")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func importCmd() *cobra.Command {
	var inPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "import a script from its neutral JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", inPath, err)
			}
			var exp script.Export
			if err := json.Unmarshal(raw, &exp); err != nil {
				return fmt.Errorf("decode export: %w", err)
			}
			sc, err := script.ImportScript(ctx, a.scripts, a.ws, exp, overwrite)
			if err != nil {
				return fmt.Errorf("import script: %w", err)
			}
			fmt.Println(sc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "path to a script export JSON file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing script with the same id")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
