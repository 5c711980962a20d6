// ABOUTME: Tests for the SSE transport and wire format parsing
// ABOUTME: Uses the fake council server over httptest plus raw stream fixtures

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/council/internal/devserver"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

// drain reads events until EOF or error.
func drain(t *testing.T, s Stream) ([]Event, error) {
	t.Helper()
	var events []Event
	for {
		ev, err := s.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func payloads(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == EventPayload {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func TestSSE_StreamsRecordsInOrder(t *testing.T) {
	fake := devserver.New(devserver.Config{
		Script: devserver.Records("\n--- Iteration 1 ---", "Solver: hi", "Execution Feedback:\nOutput:\nok\nErrors:\n"),
	})
	c := newTestClient(t, fake.Handler())

	tr, err := c.Transport(ModeStream)
	require.NoError(t, err)

	stream, err := tr.Open(t.Context(), Request{Prompt: "add 1 & 2?", Model: "llama3"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := drain(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	require.NotEmpty(t, events)
	assert.Equal(t, EventOpened, events[0].Kind)
	assert.Equal(t, []string{
		"\n--- Iteration 1 ---",
		"Solver: hi",
		"Execution Feedback:\nOutput:\nok\nErrors:\n",
	}, payloads(events))

	require.Len(t, fake.Received(), 1)
	assert.Equal(t, "add 1 & 2?", fake.Received()[0].Prompt)
	assert.Equal(t, "llama3", fake.Received()[0].Model)
}

func TestSSE_OmitsEmptyModel(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
	}))

	tr, _ := c.Transport(ModeStream)
	stream, err := tr.Open(t.Context(), Request{Prompt: "hi there"})
	require.NoError(t, err)
	stream.Close()

	assert.Equal(t, "prompt=hi+there", rawQuery)
}

func TestSSE_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, devserver.New(devserver.Config{}).Handler())

	tr, _ := c.Transport(ModeStream)
	// The fake server rejects blank prompts with a JSON detail.
	_, err := tr.Open(t.Context(), Request{Prompt: " "})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "prompt is required")
}

func TestSSE_RejectsNonEventStream(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation":[]}`))
	}))

	tr, _ := c.Transport(ModeStream)
	_, err := tr.Open(t.Context(), Request{Prompt: "hi"})

	assert.ErrorIs(t, err, ErrNotEventStream)
}

func TestSSE_AcceptsCharsetParameter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Write([]byte("data: hello\n\n"))
	}))

	tr, _ := c.Transport(ModeStream)
	stream, err := tr.Open(t.Context(), Request{Prompt: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := drain(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"hello"}, payloads(events))
}

func TestSSE_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil, nil)
	require.NoError(t, err)

	tr, _ := c.Transport(ModeStream)
	_, err = tr.Open(t.Context(), Request{Prompt: "hi"})
	assert.Error(t, err)
}

func TestSSE_CloseUnblocksNext(t *testing.T) {
	fake := devserver.New(devserver.Config{Script: devserver.Records("first"), HoldOpen: true})
	c := newTestClient(t, fake.Handler())

	tr, _ := c.Transport(ModeStream)
	stream, err := tr.Open(t.Context(), Request{Prompt: "hi"})
	require.NoError(t, err)

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, EventOpened, ev.Kind)
	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", ev.Payload)

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, stream.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}

	_, err = stream.Next()
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.NoError(t, stream.Close(), "Close must be idempotent")
}

func TestSSE_ContextCancelUnblocksNext(t *testing.T) {
	fake := devserver.New(devserver.Config{Script: devserver.Records(), HoldOpen: true})
	c := newTestClient(t, fake.Handler())

	ctx, cancel := context.WithCancel(t.Context())
	tr, _ := c.Transport(ModeStream)
	stream, err := tr.Open(ctx, Request{Prompt: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.Error(t, err)
		assert.NotErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after context cancel")
	}
}

func TestSSEStream_WireFormat(t *testing.T) {
	raw := strings.Join([]string{
		": keepalive",
		"data: plain",
		"",
		"event: message",
		"data: explicit message",
		"",
		"event: progress",
		"data: ignored named event",
		"",
		"id: 7",
		"data:no leading space",
		"data:  two spaces",
		"",
		"data",
		"",
		"retry: 1000",
		"data: crlf\r",
		"\r",
		"data: cut off by EOF",
	}, "\n")

	s := newSSEStream(io.NopCloser(strings.NewReader(raw)), slog.Default())
	events, err := drain(t, s)

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 6)
	assert.Equal(t, EventOpened, events[0].Kind)
	assert.Equal(t, "plain", events[1].Payload)
	assert.Equal(t, "explicit message", events[2].Payload)
	assert.Equal(t, "no leading space\n two spaces", events[3].Payload)
	assert.Equal(t, "7", events[3].ID)
	assert.Equal(t, "", events[4].Payload)
	assert.Equal(t, "crlf", events[5].Payload)
	assert.Equal(t, "7", events[5].ID, "last event id persists")
}

func TestSSEStream_OversizedRecord(t *testing.T) {
	raw := "data: " + strings.Repeat("x", maxRecordSize+1) + "\n\n"

	s := newSSEStream(io.NopCloser(strings.NewReader(raw)), slog.Default())
	_, err := s.Next()
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
