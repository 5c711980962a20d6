// ABOUTME: Connection manager for streaming council conversations
// ABOUTME: Owns the single live transport, drives the lifecycle state machine and appends turns

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/2389/council/internal/sentinel"
	"github.com/2389/council/internal/store"
	"github.com/2389/council/internal/transport"
	"github.com/2389/council/internal/turn"
)

// ErrEmptyPrompt is returned by Open for a blank prompt. The manager's
// state is left untouched.
var ErrEmptyPrompt = errors.New("prompt is empty")

// errStreamEnded replaces io.EOF for a stream that ended without a
// terminal sentinel.
var errStreamEnded = errors.New("stream ended before the conversation finished")

const (
	transportFailureMessage = "Connection to the server failed."
	maxDurationMessage      = "Conversation exceeded the maximum duration of %s."
)

// Dialer resolves a transport for a mode. *transport.Client implements it.
type Dialer interface {
	Transport(mode transport.Mode) (transport.Transport, error)
}

// Config configures a Manager.
type Config struct {
	Dialer Dialer
	Store  store.Store
	// Detector defaults to sentinel.Default().
	Detector *sentinel.Detector
	// MaxDuration closes a connection as failed once it has been open this
	// long. Zero disables the limit.
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// Options are per-submission settings.
type Options struct {
	Model string
	// Transport defaults to transport.ModeStream.
	Transport transport.Mode
}

// connection is the manager-owned handle of one submission.
type connection struct {
	id     string
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// Guarded by Manager.mu.
	stream transport.Stream
	seq    int
	closed bool
	final  State

	done chan struct{}
}

// Manager runs at most one conversation connection at a time.
type Manager struct {
	dialer      Dialer
	store       store.Store
	detector    *sentinel.Detector
	maxDuration time.Duration
	events      *Broadcaster
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	current *connection

	// discarded counts events dropped because their connection was closed.
	discarded atomic.Int64
}

// NewManager creates a Manager in the Idle state.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxDuration < 0 {
		return nil, fmt.Errorf("max duration must not be negative")
	}
	if cfg.Detector == nil {
		cfg.Detector = sentinel.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		dialer:      cfg.Dialer,
		store:       cfg.Store,
		detector:    cfg.Detector,
		maxDuration: cfg.MaxDuration,
		events:      NewBroadcaster(logger),
		logger:      logger.With("component", "conversation"),
		state:       Idle,
	}, nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel of lifecycle events until ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	ch, _ := m.events.Subscribe(ctx)
	return ch
}

// Open starts a new connection for prompt and returns its ID. A connection
// still in flight is cancelled first. Canceling ctx cancels the connection.
//
// Open returns an error only when it did nothing: for a blank prompt or a
// transport mode the dialer does not know.
func (m *Manager) Open(ctx context.Context, prompt string, opts Options) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	mode := opts.Transport
	if mode == "" {
		mode = transport.ModeStream
	}
	tr, err := m.dialer.Transport(mode)
	if err != nil {
		return "", fmt.Errorf("resolving transport: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil && !prev.closed {
		prev.logger.Debug("superseded by new submission")
		m.closeLocked(prev, OutcomeCancelled)
	}

	var (
		connCtx context.Context
		cancel  context.CancelFunc
	)
	if m.maxDuration > 0 {
		connCtx, cancel = context.WithTimeout(ctx, m.maxDuration)
	} else {
		connCtx, cancel = context.WithCancel(ctx)
	}

	id := uuid.New().String()
	conn := &connection{
		id:     id,
		parent: ctx,
		ctx:    connCtx,
		cancel: cancel,
		logger: m.logger.With("connection_id", id),
		done:   make(chan struct{}),
	}
	m.current = conn
	m.setStateLocked(conn, Connecting)

	conn.logger.Info("connection opening",
		"transport", string(mode),
		"model", opts.Model)

	// Caller cancellation and the duration limit close the connection even
	// when the transport does not notice.
	context.AfterFunc(connCtx, func() { m.expire(conn) })

	go m.run(conn, tr, transport.Request{Prompt: prompt, Model: opts.Model})

	return id, nil
}

// Cancel closes the current connection as Cancelled without appending a
// turn. It is a no-op when Idle or already Closed.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := m.current
	if conn == nil || conn.closed {
		return
	}
	conn.logger.Info("connection cancelled")
	m.closeLocked(conn, OutcomeCancelled)
}

// Wait blocks until the current connection is closed and returns its final
// state. With no connection it returns the current state immediately.
func (m *Manager) Wait(ctx context.Context) (State, error) {
	m.mu.Lock()
	conn := m.current
	state := m.state
	m.mu.Unlock()

	if conn == nil {
		return state, nil
	}

	select {
	case <-conn.done:
		return conn.final, nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// Close cancels any running connection and closes all subscriptions.
func (m *Manager) Close() {
	m.Cancel()
	m.events.Close()
}

// run is the pump goroutine of one connection. It reads events strictly in
// order and hands each to the manager before reading the next.
func (m *Manager) run(conn *connection, tr transport.Transport, req transport.Request) {
	// A panicking transport fails its connection instead of the process.
	var pc panics.Catcher
	pc.Try(func() { m.pump(conn, tr, req) })
	if r := pc.Recovered(); r != nil {
		conn.logger.Error("transport panicked", "panic", r.Value, "stack", string(r.Stack))
		m.fail(conn, r.AsError())
	}
}

func (m *Manager) pump(conn *connection, tr transport.Transport, req transport.Request) {
	stream, err := tr.Open(conn.ctx, req)
	if err != nil {
		m.fail(conn, err)
		return
	}
	if !m.attach(conn, stream) {
		stream.Close()
		return
	}

	for {
		ev, err := stream.Next()
		if err != nil {
			m.fail(conn, err)
			return
		}
		if !m.handle(conn, ev) {
			return
		}
	}
}

// attach records the opened stream so close can release it. It reports
// false when the connection was closed while the transport was opening.
func (m *Manager) attach(conn *connection, stream transport.Stream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.closed {
		m.discard(conn, "stream opened after close")
		return false
	}
	conn.stream = stream
	return true
}

// handle applies one transport event. It reports whether the pump should
// keep reading.
func (m *Manager) handle(conn *connection, ev transport.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.closed || m.current != conn {
		m.discard(conn, ev.Kind.String())
		return false
	}

	switch ev.Kind {
	case transport.EventOpened:
		if m.state.Phase == PhaseConnecting {
			m.setStateLocked(conn, Streaming)
		}
		return true

	case transport.EventPayload:
		if m.state.Phase == PhaseConnecting {
			conn.logger.Debug("payload before open signal")
			m.setStateLocked(conn, Streaming)
		}

		if ev.Replayed {
			m.appendLocked(conn, turn.Parse(ev.Payload))
			return true
		}

		match := m.detector.Match(ev.Payload)
		if !match.Status.IsTerminal() {
			m.appendLocked(conn, turn.Parse(ev.Payload))
			return true
		}

		if match.CarriesContent(ev.Payload) {
			m.appendLocked(conn, turn.Parse(ev.Payload))
		}
		outcome := OutcomeSuccess
		if match.Status == sentinel.TerminalFailure {
			outcome = OutcomeFailure
		}
		conn.logger.Info("terminal payload received",
			"status", match.Status.String(),
			"sentinel", match.Phrase)
		m.closeLocked(conn, outcome)
		return false

	case transport.EventComplete:
		conn.logger.Info("conversation complete")
		m.closeLocked(conn, OutcomeSuccess)
		return false

	default:
		conn.logger.Warn("ignoring unknown transport event", "kind", int(ev.Kind))
		return true
	}
}

// fail handles a transport error from the pump.
func (m *Manager) fail(conn *connection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.closed {
		m.discard(conn, "transport error")
		return
	}
	m.terminateLocked(conn, err)
}

// expire runs when the connection context is done.
func (m *Manager) expire(conn *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.closed {
		return
	}
	m.terminateLocked(conn, conn.ctx.Err())
}

// terminateLocked closes conn after a failure, deciding between caller
// cancellation, the duration limit and a transport failure.
func (m *Manager) terminateLocked(conn *connection, cause error) {
	switch {
	case conn.parent.Err() != nil:
		conn.logger.Info("connection cancelled by caller", "cause", cause)
		m.closeLocked(conn, OutcomeCancelled)

	case errors.Is(conn.ctx.Err(), context.DeadlineExceeded):
		conn.logger.Warn("connection exceeded max duration", "max_duration", m.maxDuration)
		m.appendLocked(conn, syntheticError(fmt.Sprintf(maxDurationMessage, m.maxDuration)))
		m.closeLocked(conn, OutcomeFailure)

	default:
		if errors.Is(cause, io.EOF) {
			cause = errStreamEnded
		}
		conn.logger.Warn("transport failed", "error", cause)
		m.appendLocked(conn, syntheticError(transportFailureMessage))
		m.closeLocked(conn, OutcomeFailure)
	}
}

// closeLocked releases the transport and moves conn to Closed(outcome).
func (m *Manager) closeLocked(conn *connection, outcome Outcome) {
	conn.closed = true
	conn.cancel()
	if conn.stream != nil {
		if err := conn.stream.Close(); err != nil {
			conn.logger.Debug("closing stream", "error", err)
		}
	}

	m.setStateLocked(conn, Closed(outcome))
	conn.final = Closed(outcome)
	close(conn.done)

	conn.logger.Info("connection closed", "outcome", outcome.String(), "turns", conn.seq)
}

// appendLocked stamps t with the connection's next sequence number and
// appends it to the store.
func (m *Manager) appendLocked(conn *connection, t turn.Turn) {
	t.Sequence = conn.seq
	t.ConnectionID = conn.id
	conn.seq++

	m.store.Append(t)
	m.events.Publish(Event{
		Type:         EventTurnAppended,
		ConnectionID: conn.id,
		State:        m.state,
		Turn:         &t,
	})
}

func (m *Manager) setStateLocked(conn *connection, s State) {
	conn.logger.Debug("state changed", "from", m.state.String(), "to", s.String())
	m.state = s
	m.events.Publish(Event{
		Type:         EventStateChanged,
		ConnectionID: conn.id,
		State:        s,
	})
}

func (m *Manager) discard(conn *connection, what string) {
	m.discarded.Add(1)
	conn.logger.Debug("discarding event from closed connection", "event", what)
}

// syntheticError builds the error turn appended for client-side failures.
func syntheticError(message string) turn.Turn {
	return turn.Parse(turn.ErrorPrefix + " " + message)
}
