// Package transport connects to the council server and exposes its
// conversation output as a pull-based event stream.
//
// # Streams
//
// Both transports implement the same interface:
//
//	stream, err := tr.Open(ctx, transport.Request{Prompt: "build a calculator"})
//	for {
//		ev, err := stream.Next()
//		if err != nil { ... } // io.EOF at the end
//		...
//	}
//
// Events are delivered in this order:
//
//   - EventOpened: once, when the server accepted the request
//   - EventPayload: one per conversation record
//   - EventComplete: batch only, after the last record
//
// Cancelling ctx or calling Close unblocks a pending Next.
//
// # SSE
//
// GET /solve?prompt=<prompt>&model=<model> with Accept: text/event-stream.
// Only unnamed (or "message") events are payloads; multi-line data is
// joined with "\n".
//
// # Batch
//
// POST /solve with {"prompt": "..."}; the response's "conversation" array is
// replayed as payloads followed by EventComplete.
//
// # Models
//
// ListModels fetches GET /models for selection controls. It is independent
// of any conversation.
package transport
