// ABOUTME: Interactive chat loop for the council CLI
// ABOUTME: Submits prompts, handles slash commands and maps Ctrl+C to cancel or quit

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/council/internal/conversation"
	"github.com/2389/council/internal/render"
	"github.com/2389/council/internal/transport"
)

const chatHelp = `Commands:
  /cancel              Stop the running conversation
  /models              List the server's models
  /use <model>         Use a model for the next submissions
  /transport <mode>    Switch transport: stream or batch
  /history             Show every turn of this session
  /agents              List the agents seen this session
  /help                Show this help
  /quit                Exit
Anything else is submitted as a problem. Ctrl+C cancels a running
conversation and exits when idle.`

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation session",
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

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			in := cmd.InOrStdin()
			c := newChat(sess, cmd.ErrOrStderr(), isTerminal(in))
			return c.run(cmd.Context(), in, interrupts)
		},
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// chat is one interactive session. Rendered turns go to the session's
// output; prompts and notices go to info.
type chat struct {
	sess        *session
	info        *lockedWriter
	opts        conversation.Options
	interactive bool
	// pending is the connection whose close non-interactive input waits for.
	pending string

	notice *color.Color
	status map[conversation.Outcome]*color.Color
}

func newChat(sess *session, info io.Writer, interactive bool) *chat {
	c := &chat{
		sess:        sess,
		info:        newLockedWriter(info),
		opts:        sess.options(),
		interactive: interactive,
		notice:      color.New(color.FgYellow),
		status: map[conversation.Outcome]*color.Color{
			conversation.OutcomeSuccess:   color.New(color.FgGreen, color.Bold),
			conversation.OutcomeFailure:   color.New(color.FgRed, color.Bold),
			conversation.OutcomeCancelled: color.New(color.FgYellow),
		},
	}
	if sess.cfg.Render.NoColor {
		c.notice.DisableColor()
		for _, col := range c.status {
			col.DisableColor()
		}
	}
	return c
}

// run reads input until /quit, end of input or an idle interrupt. When
// input is not a terminal, lines are taken one conversation at a time so
// scripted input is not dropped as busy.
func (c *chat) run(ctx context.Context, in io.Reader, interrupts <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go readLines(ctx, in, lines)

	events := c.sess.manager.Subscribe(ctx)

	c.banner()
	c.prompt()

	for {
		input := lines
		if !c.interactive && c.pending != "" {
			input = nil
		}

		select {
		case <-ctx.Done():
			return nil

		case <-interrupts:
			if c.sess.manager.State().Busy() {
				c.sess.manager.Cancel()
				continue
			}
			fmt.Fprintln(c.info)
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == conversation.EventStateChanged && ev.State.IsClosed() {
				if ev.ConnectionID == c.pending {
					c.pending = ""
				}
				c.closed(ev.State)
			}

		case line, ok := <-input:
			if !ok {
				// End of input: let a running conversation finish.
				if _, err := c.sess.manager.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			if quit := c.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

// readLines sends each input line to lines and closes it at end of input.
func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// handleLine processes one line of input and reports whether to quit.
func (c *chat) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		c.prompt()
		return false
	case strings.HasPrefix(line, "/"):
		return c.command(ctx, line)
	}

	if c.sess.manager.State().Busy() {
		c.notify("A conversation is in progress; input ignored. Use /cancel to stop it.")
		return false
	}

	id, err := c.sess.manager.Open(ctx, line, c.opts)
	if err != nil {
		c.notify("Could not submit: %v", err)
		c.prompt()
		return false
	}
	c.pending = id
	return false
}

func (c *chat) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true

	case "/cancel":
		if !c.sess.manager.State().Busy() {
			c.notify("Nothing to cancel.")
			break
		}
		c.sess.manager.Cancel()
		return false

	case "/models":
		models, err := c.sess.listModels(ctx)
		if err != nil {
			c.notify("Could not list models: %v", err)
			break
		}
		printModels(c.sess.out, models, c.opts.Model, c.sess.cfg.Render.NoColor)

	case "/use":
		if arg == "" {
			c.notify("Current model: %s", displayModel(c.opts.Model))
			break
		}
		c.opts.Model = arg
		c.notify("Using model %s.", arg)

	case "/transport":
		if arg == "" {
			c.notify("Current transport: %s", c.opts.Transport)
			break
		}
		mode, err := transport.ParseMode(arg)
		if err != nil {
			c.notify("%v", err)
			break
		}
		c.opts.Transport = mode
		c.notify("Using %s transport.", mode)

	case "/history":
		turns, err := c.sess.history(ctx)
		if err != nil {
			c.notify("Could not read history: %v", err)
			break
		}
		if len(turns) == 0 {
			c.notify("No turns yet.")
			break
		}
		if err := render.All(c.sess.out, c.sess.renderer, turns); err != nil {
			c.notify("Could not render history: %v", err)
		}

	case "/agents":
		agents, err := c.sess.agents(ctx)
		if err != nil {
			c.notify("Could not list agents: %v", err)
			break
		}
		if len(agents) == 0 {
			c.notify("No agents yet.")
			break
		}
		c.notify("Agents: %s", strings.Join(agents, ", "))

	case "/help":
		fmt.Fprintln(c.info, chatHelp)

	default:
		c.notify("Unknown command %s. Type /help for commands.", name)
	}

	if !c.sess.manager.State().Busy() {
		c.prompt()
	}
	return false
}

func (c *chat) banner() {
	if !c.interactive {
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	if c.sess.cfg.Render.NoColor {
		cyan.DisableColor()
	}
	cyan.Fprintf(c.info, "council %s\n", version)
	fmt.Fprintf(c.info, "Server: %s  Model: %s  Transport: %s\n",
		c.sess.cfg.Server.URL, displayModel(c.opts.Model), c.opts.Transport)
	fmt.Fprintln(c.info, "Type a problem to solve, or /help for commands.")
}

func (c *chat) prompt() {
	if c.interactive {
		fmt.Fprint(c.info, "> ")
	}
}

func (c *chat) closed(state conversation.State) {
	col, ok := c.status[state.Outcome]
	if !ok {
		col = c.notice
	}
	col.Fprintf(c.info, "[%s]\n", state)
	c.prompt()
}

func (c *chat) notify(format string, args ...any) {
	c.notice.Fprintf(c.info, format+"\n", args...)
}

func displayModel(model string) string {
	if model == "" {
		return "server default"
	}
	return model
}
