// ABOUTME: Tests for the payload parser and code fence segmentation
// ABOUTME: Covers agent, system and error classification plus fence edge cases

package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_AgentMessage(t *testing.T) {
	got := Parse("Planner: Let's begin")

	assert.Equal(t, KindAgent, got.Kind)
	assert.Equal(t, "Planner", got.Agent)
	assert.Equal(t, "Let's begin", got.Content)
	assert.Equal(t, "Planner: Let's begin", got.Raw)
	assert.True(t, got.IsAgent())
}

func TestParse_SystemMessage(t *testing.T) {
	got := Parse("All tasks completed successfully.")

	assert.Equal(t, KindSystem, got.Kind)
	assert.Empty(t, got.Agent)
	assert.Equal(t, "All tasks completed successfully.", got.Content)
}

func TestParse_ErrorMessage(t *testing.T) {
	got := Parse("Error: timeout contacting model")

	assert.Equal(t, KindError, got.Kind)
	assert.Empty(t, got.Agent)
	assert.Equal(t, "timeout contacting model", got.Content)
	assert.True(t, got.IsError())
}

func TestParse_Table(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    Kind
		agent   string
		content string
	}{
		{"outer whitespace trimmed", "  Solver:   hi there  \n", KindAgent, "Solver", "hi there"},
		{"splits at first colon", "Solver: ratio is 1:2", KindAgent, "Solver", "ratio is 1:2"},
		{"multi-line agent reply", "Reviewer: looks good\nnext: ship it", KindAgent, "Reviewer", "looks good\nnext: ship it"},
		{"first-colon limitation", "Execution Feedback:\nOutput:\nok", KindAgent, "Execution Feedback", "Output:\nok"},
		{"iteration banner", "\n--- Iteration 1 ---", KindSystem, "", "--- Iteration 1 ---"},
		{"blank speaker degrades", ": orphan text", KindSystem, "", ": orphan text"},
		{"empty payload", "", KindSystem, "", ""},
		{"error prefix wins over colon", "Error: model: not found", KindError, "", "model: not found"},
		{"bare error prefix", "Error:", KindError, "", ""},
		{"indented error prefix", "   Error: boom", KindError, "", "boom"},
		{"lowercase error is an agent", "error: nope", KindAgent, "error", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.agent, got.Agent)
			assert.Equal(t, tt.content, got.Content)
			assert.Equal(t, tt.kind == KindAgent, got.Agent != "", "agent must be set iff kind is agent")
		})
	}
}

func TestParse_DerivesSegmentsFromContent(t *testing.T) {
	got := Parse("Solver: run ```go test``` now")

	assert.Equal(t, []Segment{
		{Text: "run "},
		{IsCode: true, Text: "go test"},
		{Text: " now"},
	}, got.Segments)
}

func TestSegments_RoundTrip(t *testing.T) {
	got := Parse("before ```code here``` after").Segments

	assert.Equal(t, []Segment{
		{IsCode: false, Text: "before "},
		{IsCode: true, Text: "code here"},
		{IsCode: false, Text: " after"},
	}, got)
}

func TestSegments_Table(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Segment
	}{
		{"empty", "", nil},
		{"prose only", "just words", []Segment{{Text: "just words"}}},
		{"code only", "```x := 1```", []Segment{{IsCode: true, Text: "x := 1"}}},
		{
			"inner text preserved exactly",
			"```python\nprint('hi')\n```",
			[]Segment{{IsCode: true, Text: "python\nprint('hi')\n"}},
		},
		{"empty code block", "a``````b", []Segment{{Text: "a"}, {IsCode: true, Text: ""}, {Text: "b"}}},
		{"unterminated fence is prose", "see ```broken", []Segment{{Text: "see ```broken"}}},
		{
			"two blocks",
			"```a``` and ```b```",
			[]Segment{{IsCode: true, Text: "a"}, {Text: " and "}, {IsCode: true, Text: "b"}},
		},
		{
			"trailing unmatched fence after a pair",
			"```a``` then ```b",
			[]Segment{{IsCode: true, Text: "a"}, {Text: " then ```b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segments(tt.content))
		})
	}
}
