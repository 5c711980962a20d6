// ABOUTME: Turn data types produced from raw conversation payloads
// ABOUTME: Defines Kind, Segment and Turn shared by the manager, stores and renderers

package turn

// Kind classifies a turn
type Kind string

const (
	KindAgent  Kind = "agent"
	KindSystem Kind = "system"
	KindError  Kind = "error"
)

// ErrorPrefix marks a payload signaled as an error by the server.
const ErrorPrefix = "Error:"

// Segment is a run of content that is either prose or a fenced code block.
type Segment struct {
	IsCode bool
	Text   string
}

// Turn is one unit of conversation output.
type Turn struct {
	Kind Kind
	// Agent is the speaker's name. Set iff Kind == KindAgent.
	Agent   string
	Content string
	// Segments is derived from Content and only used for rendering.
	Segments []Segment

	// Sequence and ConnectionID are assigned by the connection manager
	// when the turn is appended.
	Sequence     int
	ConnectionID string

	// Raw is the unmodified payload.
	Raw string
}

// IsAgent reports whether the turn was spoken by a named agent.
func (t Turn) IsAgent() bool {
	return t.Kind == KindAgent
}

// IsError reports whether the turn carries an error.
func (t Turn) IsError() bool {
	return t.Kind == KindError
}
