// Package conversation owns the single live connection to the council
// server and turns its output into appended turns and lifecycle events.
//
// # Manager
//
// The Manager runs one connection at a time:
//
//	m, _ := conversation.NewManager(conversation.Config{Dialer: client, Store: log})
//	id, err := m.Open(ctx, "build a calculator", conversation.Options{Transport: transport.ModeStream})
//	final, err := m.Wait(ctx)
//
// State machine:
//
//	Idle → Connecting → Streaming → Closed(Success|Failure|Cancelled)
//
// Closed stays put until the next Open. Cancel is reachable from every
// non-closed state and is idempotent.
//
// # Payload Handling
//
// Each payload is classified by the sentinel detector before it is parsed:
//
//   - NonTerminal: parsed and appended, the connection keeps streaming
//   - TerminalSuccess / TerminalFailure: appended only if something is left
//     besides the sentinel, then the connection closes with that outcome
//
// Transport failures (dial errors, bad status, a stream that ends before a
// sentinel) append one synthetic error turn and close as Failure. Cancel
// appends nothing. Nothing is returned to the caller as an error once Open
// has accepted the prompt.
//
// # Single Flight
//
// Open cancels the previous connection before starting the next one. All
// events, Open and Cancel are serialized on the manager's mutex, and every
// event is checked against the connection it came from: once a connection
// is closed, nothing it delivers reaches the store.
//
// # Events
//
// Subscribe returns a channel of state changes and appended turns for UIs
// that want to react without polling (for example, to disable submission
// while Busy).
package conversation
