// ABOUTME: Entry point for the council CLI, a streaming client for the agent council server
// ABOUTME: Defines the root command, global flags and exit code handling
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/council/internal/config"
)

var version = "dev" // set via ldflags at build time

// Exit codes of the solve command.
const (
	exitSuccess   = 0
	exitError     = 1
	exitFailure   = 2
	exitCancelled = 130
)

// exitCodeError carries a process exit status out of a command.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// globalFlags are the root command's persistent flags.
type globalFlags struct {
	configPath string
	server     string
	model      string
	transport  string
	format     string
	store      string
	logLevel   string
	noColor    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Logs and chat notices share stderr; one lock keeps their lines whole.
	stdout = newLockedWriter(stdout)
	stderr = newLockedWriter(stderr)

	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if exitErr.msg != "" {
			fmt.Fprintln(stderr, exitErr.msg)
		}
		return exitErr.code
	}

	fmt.Fprintln(stderr, color.RedString("Error: %v", err))
	return exitError
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "council",
		Short: "Chat with a council of problem-solving agents",
		Long: `council submits a problem to a council server and shows the agents'
conversation as it streams in, until the agents agree the problem is
solved or give up.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	pf.StringVar(&flags.server, "server", "", "Council server URL")
	pf.StringVar(&flags.model, "model", "", "Model passed to the server")
	pf.StringVar(&flags.transport, "transport", "", "Transport: stream or batch")
	pf.StringVar(&flags.format, "format", "", "Output format: text or html")
	pf.StringVar(&flags.store, "store", "", "Turn store: memory or sqlite")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newChatCmd(flags))
	root.AddCommand(newSolveCmd(flags))
	root.AddCommand(newModelsCmd(flags))

	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	path := flags.configPath
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultPath())
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	set := cmd.Flags().Changed
	if set("server") {
		cfg.Server.URL = flags.server
	}
	if set("model") {
		cfg.Conversation.Model = flags.model
	}
	if set("transport") {
		cfg.Conversation.Transport = flags.transport
	}
	if set("format") {
		cfg.Render.Format = flags.format
	}
	if set("store") {
		cfg.Store.Driver = flags.store
	}
	if set("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.noColor {
		cfg.Render.NoColor = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
