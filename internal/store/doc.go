// Package store holds the ordered conversation log the UI renders.
//
// # Contract
//
// The connection manager is the only writer and it never reads back:
//
//	type Store interface {
//		Append(t turn.Turn)
//	}
//
// Implementations preserve insertion order and never reorder turns.
// Append is called while the manager holds its lock, so it must return
// quickly and must not call back into the manager.
//
// # Implementations
//
//   - Memory: a slice, the default for the CLI
//   - SQLite: an in-memory SQLite database (modernc.org/sqlite) that supports
//     queries by connection; it lives only as long as the process
//   - Multi: fans one turn out to several stores in order
//   - Func: adapts a callback, e.g. a renderer
package store
