// ABOUTME: Renderer interface and output format selection
// ABOUTME: Maps the configured render format to a Text or HTML renderer

package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/2389/council/internal/turn"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown render format")

// Format names an output format.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// ParseFormat parses a format name. The empty string means FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Renderer writes one turn.
type Renderer interface {
	Render(w io.Writer, t turn.Turn) error
}

// Options tune the renderers.
type Options struct {
	// NoColor disables terminal colors in the text renderer.
	NoColor bool
}

// New returns the renderer for format.
func New(format Format, opts Options) (Renderer, error) {
	switch format {
	case "", FormatText:
		return NewText(opts.NoColor), nil
	case FormatHTML:
		return NewHTML(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// All renders turns in order, stopping at the first write error.
func All(w io.Writer, r Renderer, turns []turn.Turn) error {
	for _, t := range turns {
		if err := r.Render(w, t); err != nil {
			return fmt.Errorf("rendering turn %d: %w", t.Sequence, err)
		}
	}
	return nil
}
