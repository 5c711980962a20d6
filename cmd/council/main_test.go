// ABOUTME: End-to-end tests for the council CLI commands
// ABOUTME: Runs solve, models and scripted chat against the in-process dev server

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/council/internal/config"
	"github.com/2389/council/internal/devserver"
)

func startServer(t *testing.T, cfg devserver.Config) (*devserver.Server, string) {
	t.Helper()
	srv := devserver.New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	// Keep the developer's own config out of the tests.
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	return srv, ts.URL
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestSolve_Success(t *testing.T) {
	srv, url := startServer(t, devserver.Config{Script: devserver.IterationScript(1, true)})

	res := runCLI(t, "", "solve", "--server", url, "--no-color", "--model", "gpt-4o", "print", "hi")

	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Solver:\n")
	assert.Contains(t, res.stdout, "Reviewer:\nThe problem is solved.")
	assert.NotContains(t, res.stdout, "Both agents agree")
	assert.Contains(t, res.stderr, "Closed(Success) after 4 turns")

	received := srv.Received()
	require.Len(t, received, 1)
	assert.Equal(t, http.MethodGet, received[0].Method)
	assert.Equal(t, "print hi", received[0].Prompt)
	assert.Equal(t, "gpt-4o", received[0].Model)
}

func TestSolve_FailureExitCode(t *testing.T) {
	_, url := startServer(t, devserver.Config{Script: devserver.IterationScript(1, false)})

	res := runCLI(t, "", "solve", "--server", url, "--no-color", "fix it")

	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "Closed(Failure) after 5 turns")
}

func TestSolve_ServerErrorExitCode(t *testing.T) {
	_, url := startServer(t, devserver.Config{Script: devserver.Records("Solver: trying", "Error: model unavailable")})

	res := runCLI(t, "", "solve", "--server", url, "--no-color", "fix it")

	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, "Error: model unavailable")
}

func TestSolve_PromptFromStdinWithBatchAndSQLite(t *testing.T) {
	srv, url := startServer(t, devserver.Config{})

	res := runCLI(t, "  write a parser\n", "solve", "--server", url, "--no-color",
		"--transport", "batch", "--store", "sqlite")

	require.Equal(t, exitSuccess, res.code, res.stderr)

	received := srv.Received()
	require.Len(t, received, 1)
	assert.Equal(t, http.MethodPost, received[0].Method)
	assert.Equal(t, "write a parser", received[0].Prompt)
}

func TestSolve_HTMLFormat(t *testing.T) {
	_, url := startServer(t, devserver.Config{})

	res := runCLI(t, "", "solve", "--server", url, "--format", "html", "hello")

	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `<div class="message agent"><div class="agent-name">Solver</div>`)
	assert.Contains(t, res.stdout, `<pre class="code-block"><code>`)
}

func TestSolve_EmptyPrompt(t *testing.T) {
	_, url := startServer(t, devserver.Config{})

	res := runCLI(t, "   \n", "solve", "--server", url)

	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "prompt is empty")
}

func TestSolve_InvalidFlagValue(t *testing.T) {
	_, url := startServer(t, devserver.Config{})

	res := runCLI(t, "", "solve", "--server", url, "--transport", "smoke-signals", "hi")

	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "conversation.transport")
}

func TestModels_MarksCurrentModel(t *testing.T) {
	_, url := startServer(t, devserver.Config{})

	res := runCLI(t, "", "models", "--server", url, "--no-color", "--model", "llama3")

	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "gpt-4o")
	assert.Contains(t, res.stdout, "* llama3")
}

func TestChat_ScriptedSession(t *testing.T) {
	srv, url := startServer(t, devserver.Config{})

	input := strings.Join([]string{
		"print hi",
		"/history",
		"/agents",
		"/use llama3",
		"/transport batch",
		"second problem",
		"/bogus",
		"/quit",
		"never submitted",
	}, "\n") + "\n"

	res := runCLI(t, input, "chat", "--server", url, "--no-color")

	require.Equal(t, exitSuccess, res.code, res.stderr)

	// Two conversations plus the /history replay of the first.
	assert.Equal(t, 3, strings.Count(res.stdout, "Solver:\n"))
	assert.Equal(t, 2, strings.Count(res.stderr, "[Closed(Success)]"))
	assert.Contains(t, res.stderr, "Agents: Solver, Execution Feedback, Reviewer")
	assert.Contains(t, res.stderr, "Using model llama3.")
	assert.Contains(t, res.stderr, "Unknown command /bogus")

	received := srv.Received()
	require.Len(t, received, 2)
	assert.Equal(t, devserver.Received{Method: http.MethodGet, Prompt: "print hi"}, received[0])
	assert.Equal(t, devserver.Received{Method: http.MethodPost, Prompt: "second problem", Model: "llama3"}, received[1])
}

func TestChat_EndOfInputWaitsForConversation(t *testing.T) {
	srv, url := startServer(t, devserver.Config{Script: devserver.IterationScript(2, true)})

	res := runCLI(t, "solve this\n", "chat", "--server", url, "--no-color", "--store", "sqlite")

	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "[Closed(Success)]")
	assert.Len(t, srv.Received(), 1)
}
