// ABOUTME: The models command lists the models offered by the council server
// ABOUTME: Marks the configured default model

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/council/internal/transport"
)

func newModelsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the server offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

			sess, err := newSession(cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer sess.close()

			models, err := sess.listModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}
			printModels(cmd.OutOrStdout(), models, cfg.Conversation.Model, cfg.Render.NoColor)
			return nil
		},
	}
}

func printModels(w io.Writer, models []transport.Model, current string, noColor bool) {
	if len(models) == 0 {
		fmt.Fprintln(w, "No models available.")
		return
	}

	green := color.New(color.FgGreen)
	if noColor {
		green.DisableColor()
	}
	for _, m := range models {
		marker := "  "
		if m.Value == current {
			marker = green.Sprint("* ")
		}
		fmt.Fprintf(w, "%s%-16s %s\n", marker, m.Value, m.Label)
	}
}
