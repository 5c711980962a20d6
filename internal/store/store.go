// ABOUTME: Store interface for the ordered conversation log and small adapters
// ABOUTME: Defines Store, Func and Multi used by the connection manager and the UI

package store

import "github.com/2389/council/internal/turn"

// Store receives turns in the order they are produced.
type Store interface {
	Append(t turn.Turn)
}

// Func adapts a function to a Store.
type Func func(t turn.Turn)

// Append calls f(t).
func (f Func) Append(t turn.Turn) {
	f(t)
}

// Multi appends every turn to each store in order.
type Multi []Store

// Append forwards t to all stores.
func (m Multi) Append(t turn.Turn) {
	for _, s := range m {
		s.Append(t)
	}
}
