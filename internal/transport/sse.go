// ABOUTME: Server-Sent Events transport for GET /solve
// ABOUTME: Parses the SSE wire format into payload events, one record at a time

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// maxRecordSize bounds a single SSE line. Agent replies carry whole
	// source files, so this is well above bufio's 64KiB default.
	maxRecordSize = 4 * 1024 * 1024

	eventStreamType = "text/event-stream"
)

// SSE opens streaming solve requests.
type SSE struct {
	client *Client
}

// Open issues GET /solve and returns once the server accepted the stream.
func (s *SSE) Open(ctx context.Context, req Request) (Stream, error) {
	query := url.Values{"prompt": {req.Prompt}}
	if req.Model != "" {
		query.Set("model", req.Model)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.endpoint(solvePath, query), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", eventStreamType)
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != eventStreamType {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	s.client.logger.Debug("event stream opened", "model", req.Model)
	return newSSEStream(resp.Body, s.client.logger), nil
}

// sseStream reads SSE records from a response body.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger

	opened bool
	lastID string

	closed    atomic.Bool
	closeOnce sync.Once
}

func newSSEStream(body io.ReadCloser, logger *slog.Logger) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &sseStream{
		body:    body,
		scanner: scanner,
		logger:  logger,
	}
}

// Next returns EventOpened first, then one EventPayload per dispatched
// message event. An event cut off by the end of the body is discarded.
func (s *sseStream) Next() (Event, error) {
	if s.closed.Load() {
		return Event{}, ErrStreamClosed
	}
	if !s.opened {
		s.opened = true
		return Event{Kind: EventOpened}, nil
	}

	var eventType string
	var dataLines []string
	hasData := false

	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")

		// Empty line signals end of event
		if line == "" {
			if hasData && (eventType == "" || eventType == "message") {
				return Event{
					Kind:    EventPayload,
					Payload: strings.Join(dataLines, "\n"),
					ID:      s.lastID,
				}, nil
			}
			if hasData {
				s.logger.Debug("ignoring named event", "event", eventType)
			}
			eventType = ""
			dataLines = nil
			hasData = false
			continue
		}

		// Comment lines keep the connection alive
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			eventType = value
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			// The client never reconnects on its own.
		}
	}

	if err := s.scanner.Err(); err != nil {
		if s.closed.Load() {
			return Event{}, ErrStreamClosed
		}
		return Event{}, fmt.Errorf("reading event stream: %w", err)
	}
	if s.closed.Load() {
		return Event{}, ErrStreamClosed
	}
	return Event{}, io.EOF
}

// Close closes the response body, unblocking a pending Next.
func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
	})
	return err
}
