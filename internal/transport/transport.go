// ABOUTME: Transport and Stream interfaces shared by the SSE and batch transports
// ABOUTME: Defines events, requests, transport modes and transport errors

package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownTransport is returned for a mode other than stream or batch.
	ErrUnknownTransport = errors.New("unknown transport")

	// ErrUnexpectedStatus is returned when the server answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrNotEventStream is returned when a streaming response is not text/event-stream.
	ErrNotEventStream = errors.New("response is not an event stream")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Mode selects a transport.
type Mode string

const (
	ModeStream Mode = "stream"
	ModeBatch  Mode = "batch"
)

// ParseMode validates a mode string. An empty string selects ModeStream.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStream:
		return ModeStream, nil
	case ModeBatch:
		return ModeBatch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

// EventKind identifies a stream event.
type EventKind int

const (
	EventOpened EventKind = iota
	EventPayload
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventPayload:
		return "payload"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is one transport event.
type Event struct {
	Kind EventKind
	// Payload is the raw record text (EventPayload only).
	Payload string
	// ID is the SSE last-event id, if the server sent one.
	ID string
	// Replayed marks payloads of an already finished conversation. They are
	// appended as turns without sentinel detection; Complete ends them.
	Replayed bool
}

// Request is a solve request.
type Request struct {
	Prompt string
	Model  string
}

// Stream yields events from one connection in arrival order.
type Stream interface {
	// Next blocks until the next event. It returns io.EOF once the
	// connection ended normally and any other error on failure.
	Next() (Event, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Transport opens conversation streams.
type Transport interface {
	Open(ctx context.Context, req Request) (Stream, error)
}
