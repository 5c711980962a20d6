// ABOUTME: Batch transport for POST /solve
// ABOUTME: Replays a complete JSON conversation through the Stream interface

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// batchRequest is the JSON body sent to POST /solve.
type batchRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// batchResponse is the JSON response from POST /solve.
type batchResponse struct {
	Conversation []string        `json:"conversation"`
	Solution     json.RawMessage `json:"solution,omitempty"`
}

// Batch opens one-shot solve requests.
type Batch struct {
	client *Client
}

// Open posts the prompt and waits for the whole conversation.
func (b *Batch) Open(ctx context.Context, req Request) (Stream, error) {
	bodyBytes, err := json.Marshal(batchRequest{Prompt: req.Prompt, Model: req.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.client.endpoint(solvePath, nil), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.client.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	b.client.logger.Debug("batch conversation received", "records", len(body.Conversation))

	events := make([]Event, 0, len(body.Conversation)+2)
	events = append(events, Event{Kind: EventOpened})
	for _, record := range body.Conversation {
		events = append(events, Event{Kind: EventPayload, Payload: record, Replayed: true})
	}
	events = append(events, Event{Kind: EventComplete})

	return &replayStream{events: events}, nil
}

// replayStream yields a fixed list of events.
type replayStream struct {
	events []Event
	pos    int
	closed atomic.Bool
}

func (r *replayStream) Next() (Event, error) {
	if r.closed.Load() {
		return Event{}, ErrStreamClosed
	}
	if r.pos >= len(r.events) {
		return Event{}, io.EOF
	}
	ev := r.events[r.pos]
	r.pos++
	return ev, nil
}

func (r *replayStream) Close() error {
	r.closed.Store(true)
	return nil
}
