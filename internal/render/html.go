// ABOUTME: HTML renderer producing the conversation view markup for turns
// ABOUTME: Converts prose through goldmark and escapes code segments verbatim

package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/2389/council/internal/turn"
)

// HTML renders turns as HTML fragments. Raw HTML inside prose is omitted by
// goldmark, so payload text cannot inject markup.
type HTML struct {
	md goldmark.Markdown
}

// NewHTML creates an HTML renderer.
func NewHTML() *HTML {
	return &HTML{
		md: goldmark.New(goldmark.WithRendererOptions(gmhtml.WithHardWraps())),
	}
}

// Render writes one message element for t.
func (r *HTML) Render(w io.Writer, t turn.Turn) error {
	var b bytes.Buffer

	switch t.Kind {
	case turn.KindError:
		b.WriteString(`<div class="message error">`)
		fmt.Fprintf(&b, `<div class="error-message">%s</div>`, html.EscapeString(t.Content))
	case turn.KindAgent:
		b.WriteString(`<div class="message agent">`)
		fmt.Fprintf(&b, `<div class="agent-name">%s</div>`, html.EscapeString(t.Agent))
		if err := r.content(&b, t.Segments); err != nil {
			return err
		}
	default:
		b.WriteString(`<div class="message system">`)
		if err := r.content(&b, t.Segments); err != nil {
			return err
		}
	}
	b.WriteString("</div>\n")

	_, err := w.Write(b.Bytes())
	return err
}

func (r *HTML) content(b *bytes.Buffer, segments []turn.Segment) error {
	b.WriteString(`<div class="message-content">`)
	for _, seg := range segments {
		if seg.IsCode {
			fmt.Fprintf(b, `<pre class="code-block"><code>%s</code></pre>`, html.EscapeString(seg.Text))
			continue
		}
		if err := r.md.Convert([]byte(seg.Text), b); err != nil {
			return fmt.Errorf("converting markdown: %w", err)
		}
	}
	b.WriteString("</div>")
	return nil
}
