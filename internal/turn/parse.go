// ABOUTME: Total parser from raw payload strings to Turns
// ABOUTME: Handles the Error: prefix, first-colon agent split and code fence segmentation

package turn

import "strings"

// fence delimits a code block inside content.
const fence = "```"

// Parse converts a raw payload into a Turn. It never fails: input that
// fits neither the error prefix nor the agent rule becomes a system turn.
func Parse(raw string) Turn {
	t := Turn{Raw: raw}
	trimmed := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(trimmed, ErrorPrefix):
		t.Kind = KindError
		t.Content = strings.TrimSpace(strings.TrimPrefix(trimmed, ErrorPrefix))
	default:
		agent, content, ok := splitAgent(trimmed)
		if ok {
			t.Kind = KindAgent
			t.Agent = agent
			t.Content = content
		} else {
			t.Kind = KindSystem
			t.Content = trimmed
		}
	}

	t.Segments = Segments(t.Content)
	return t
}

// splitAgent splits s at its first colon. A blank speaker name is not an
// agent line.
func splitAgent(s string) (agent, content string, ok bool) {
	left, right, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	agent = strings.TrimSpace(left)
	if agent == "" {
		return "", "", false
	}
	return agent, strings.TrimSpace(right), true
}

// Segments splits content into prose and code runs. Only balanced fence
// pairs produce code segments; the fence markers are removed and the inner
// text is kept byte for byte. Empty prose runs are omitted.
func Segments(content string) []Segment {
	var segments []Segment
	rest := content

	for rest != "" {
		open := strings.Index(rest, fence)
		if open < 0 {
			break
		}
		closeAt := strings.Index(rest[open+len(fence):], fence)
		if closeAt < 0 {
			// Unterminated fence: the remainder is prose.
			break
		}

		if open > 0 {
			segments = append(segments, Segment{Text: rest[:open]})
		}
		inner := rest[open+len(fence) : open+len(fence)+closeAt]
		segments = append(segments, Segment{IsCode: true, Text: inner})
		rest = rest[open+len(fence)+closeAt+len(fence):]
	}

	if rest != "" {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}
