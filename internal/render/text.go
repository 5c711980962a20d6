// ABOUTME: Colored terminal renderer for turns
// ABOUTME: Agent names in bold, code segments indented, errors in red

package render

import (
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/council/internal/turn"
)

const codeIndent = "    "

// Text renders turns for a terminal.
type Text struct {
	agent  *color.Color
	system *color.Color
	code   *color.Color
	err    *color.Color
}

// NewText creates a terminal renderer. Colors follow the color package's
// terminal detection unless noColor is set.
func NewText(noColor bool) *Text {
	t := &Text{
		agent:  color.New(color.FgCyan, color.Bold),
		system: color.New(color.Faint),
		code:   color.New(color.FgYellow),
		err:    color.New(color.FgRed),
	}
	if noColor {
		for _, c := range []*color.Color{t.agent, t.system, t.code, t.err} {
			c.DisableColor()
		}
	}
	return t
}

// Render writes t followed by a blank line.
func (r *Text) Render(w io.Writer, t turn.Turn) error {
	var b strings.Builder

	switch t.Kind {
	case turn.KindError:
		r.err.Fprintf(&b, "%s %s\n", turn.ErrorPrefix, t.Content)
	case turn.KindAgent:
		r.agent.Fprintf(&b, "%s:\n", t.Agent)
		r.segments(&b, t.Segments)
	default:
		for _, line := range strings.Split(t.Content, "\n") {
			r.system.Fprintln(&b, line)
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Text) segments(b *strings.Builder, segments []turn.Segment) {
	for _, seg := range segments {
		if !seg.IsCode {
			if prose := strings.TrimSpace(seg.Text); prose != "" {
				b.WriteString(prose)
				b.WriteString("\n")
			}
			continue
		}
		for _, line := range strings.Split(strings.Trim(seg.Text, "\n"), "\n") {
			r.code.Fprintln(b, codeIndent+line)
		}
	}
}

