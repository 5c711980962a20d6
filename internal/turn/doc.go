// Package turn turns raw conversation payloads into structured turns.
//
// # Overview
//
// Every record the council server pushes is a single string. Parse
// classifies it into one of three kinds:
//
//   - agent: "Solver: here is my plan" (speaker before the first colon)
//   - error: "Error: timeout contacting model"
//   - system: anything else, e.g. "--- Iteration 1 ---"
//
// The error prefix is checked before the colon split, since "Error:"
// itself contains a colon.
//
// # Known Limitation
//
// The speaker is everything before the FIRST colon. A system line such as
// "Execution Feedback:\nOutput: ..." is therefore reported as an agent
// named "Execution Feedback". No rule that tells such lines apart can be
// derived from the payloads the server sends, so the behavior is kept as-is.
//
// # Segments
//
// Segments splits content on balanced triple-backtick fences for
// renderers. An opening fence without a closing one stays plain text.
package turn
