// ABOUTME: The solve command runs one conversation and exits with its outcome
// ABOUTME: Reads the prompt from arguments or stdin; Ctrl+C cancels the conversation

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/council/internal/conversation"
)

func newSolveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "solve [prompt...]",
		Short: "Solve one problem and exit",
		Long: `Submit a single problem and print the conversation until it closes.
Without arguments the prompt is read from stdin.

Exit status is 0 when the agents report success, 2 when they give up or
the connection fails, and 130 when cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return runSolve(ctx, cmd, flags, args)
		},
	}
}

func runSolve(ctx context.Context, cmd *cobra.Command, flags *globalFlags, args []string) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading prompt: %w", err)
		}
		prompt = string(data)
	}

	sess, err := newSession(cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer sess.close()

	id, err := sess.manager.Open(ctx, prompt, sess.options())
	if err != nil {
		return err
	}

	// Wait returns the connection's final state even after ctx is
	// cancelled, because cancellation closes the connection first.
	state, err := sess.manager.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	turns := len(sess.memory.ByConnection(id))
	summary := fmt.Sprintf("%s after %d turns", state, turns)

	switch state.Outcome {
	case conversation.OutcomeSuccess:
		fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString(summary))
		return nil
	case conversation.OutcomeCancelled:
		return &exitCodeError{code: exitCancelled, msg: color.YellowString(summary)}
	default:
		return &exitCodeError{code: exitFailure, msg: color.RedString(summary)}
	}
}
