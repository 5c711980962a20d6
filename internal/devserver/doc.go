// Package devserver is an in-process stand-in for the council server.
//
// It serves the three endpoints the client uses:
//
//   - GET /solve: an SSE stream of a scripted multi-agent exchange
//   - POST /solve: the same script as a JSON batch
//   - GET /models: the selectable models
//
// The default script follows the solver/reviewer loop of the real server:
// an iteration banner, the solver's answer, execution feedback, the
// reviewer's verdict and a closing sentinel line. Tests supply their own
// scripts and can hold streams open to exercise cancellation.
package devserver
