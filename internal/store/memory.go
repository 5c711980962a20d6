// ABOUTME: In-memory Store implementation backed by a slice
// ABOUTME: Default conversation log for the CLI and tests

package store

import (
	"sync"

	"github.com/2389/council/internal/turn"
)

// Memory is a slice-backed Store. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	turns []turn.Turn
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds t to the end of the log.
func (m *Memory) Append(t turn.Turn) {
	m.mu.Lock()
	m.turns = append(m.turns, t)
	m.mu.Unlock()
}

// Turns returns a copy of the log.
func (m *Memory) Turns() []turn.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]turn.Turn(nil), m.turns...)
}

// ByConnection returns the turns produced by one connection.
func (m *Memory) ByConnection(connectionID string) []turn.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []turn.Turn
	for _, t := range m.turns {
		if t.ConnectionID == connectionID {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}
