package main

import (
	"fmt"
	"io"
	"os"

	"documate/internal/helper"
	"documate/internal/models"
	"documate/internal/outline"

	"github.com/spf13/cobra"
)

func outlineCmd() *cobra.Command {
	var maxItems int

	cmd := &cobra.Command{
		Use:   "outline [file]",
		Short: "Extract an outline from saved model output (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read model output: %w", err)
			}
			helper.PrettyPrint(outline.Extract(string(raw), maxItems))
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxItems, "max", "n", models.DefaultMaxOutline, "maximum number of outline items")
	return cmd
}
