// ABOUTME: Tests for the CLI logger and the shared stderr writer
// ABOUTME: Logs and chat notices must serialize through one lock

package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/council/internal/config"
)

func TestNewLockedWriter_ReusesExistingLock(t *testing.T) {
	var buf bytes.Buffer
	shared := newLockedWriter(&buf)

	assert.Same(t, shared, newLockedWriter(shared))
	assert.NotSame(t, shared, newLockedWriter(&buf))
}

func TestSetupLogger_SharesStderrWriter(t *testing.T) {
	var buf bytes.Buffer
	shared := newLockedWriter(&buf)

	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, shared)
	handler, ok := logger.Handler().(*colorHandler)
	require.True(t, ok)
	assert.Same(t, shared, handler.out)
}

func TestSetupLogger_LinesStayWholeWithNotices(t *testing.T) {
	var buf bytes.Buffer
	shared := newLockedWriter(&buf)
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, shared)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			logger.Info("connection closed", "n", i)
		}()
		go func() {
			defer wg.Done()
			shared.WriteString("[Closed(Success)]\n")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 100)
	for _, line := range lines {
		if line == "[Closed(Success)]" {
			continue
		}
		assert.True(t, strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}"), "torn line %q", line)
	}
}
