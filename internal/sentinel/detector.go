// ABOUTME: Terminal sentinel detection for conversation payloads
// ABOUTME: Classifies payloads as NonTerminal, TerminalSuccess or TerminalFailure

package sentinel

import (
	"strings"
	"unicode"
)

// Status is the terminal classification of a payload.
type Status int

const (
	NonTerminal Status = iota
	TerminalSuccess
	TerminalFailure
)

func (s Status) String() string {
	switch s {
	case NonTerminal:
		return "NonTerminal"
	case TerminalSuccess:
		return "TerminalSuccess"
	case TerminalFailure:
		return "TerminalFailure"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the status ends the conversation.
func (s Status) IsTerminal() bool {
	return s == TerminalSuccess || s == TerminalFailure
}

// Default phrases sent by the council server when a run ends.
var (
	DefaultSuccess = []string{
		"All tasks completed successfully.",
		"Both agents agree that the problem is solved.",
		"Solution verified, stopping conversation.",
	}
	DefaultFailure = []string{
		"Tasks could not be completed.",
		"Conversation ended without a verified solution.",
		"Max iterations reached, stopping conversation.",
	}
)

// DefaultErrorPrefix marks a server-signaled error.
const DefaultErrorPrefix = "Error:"

// Config configures a Detector. Empty phrases are ignored.
type Config struct {
	Success     []string
	Failure     []string
	ErrorPrefix string
}

// DefaultConfig returns the phrases observed from the council server.
func DefaultConfig() Config {
	return Config{
		Success:     append([]string(nil), DefaultSuccess...),
		Failure:     append([]string(nil), DefaultFailure...),
		ErrorPrefix: DefaultErrorPrefix,
	}
}

// Match is the result of matching a payload. Phrase is the matched
// sentinel text (the error prefix for error payloads), empty when
// NonTerminal.
type Match struct {
	Status Status
	Phrase string
	prefix bool
}

// Detector classifies payloads. It is immutable and safe for concurrent use.
type Detector struct {
	success     []string
	failure     []string
	errorPrefix string
}

// New creates a Detector from cfg.
func New(cfg Config) *Detector {
	return &Detector{
		success:     nonEmpty(cfg.Success),
		failure:     nonEmpty(cfg.Failure),
		errorPrefix: cfg.ErrorPrefix,
	}
}

// Default creates a Detector with DefaultConfig.
func Default() *Detector {
	return New(DefaultConfig())
}

// Classify returns the terminal status of raw.
func (d *Detector) Classify(raw string) Status {
	return d.Match(raw).Status
}

// Match classifies raw and reports which rule fired.
func (d *Detector) Match(raw string) Match {
	// Leading whitespace is ignored the same way the parser ignores it.
	if d.errorPrefix != "" && strings.HasPrefix(strings.TrimLeftFunc(raw, unicode.IsSpace), d.errorPrefix) {
		return Match{Status: TerminalFailure, Phrase: d.errorPrefix, prefix: true}
	}
	for _, phrase := range d.failure {
		if strings.Contains(raw, phrase) {
			return Match{Status: TerminalFailure, Phrase: phrase}
		}
	}
	for _, phrase := range d.success {
		if strings.Contains(raw, phrase) {
			return Match{Status: TerminalSuccess, Phrase: phrase}
		}
	}
	return Match{Status: NonTerminal}
}

// CarriesContent reports whether raw has anything worth showing once the
// matched sentinel is removed. Leftover punctuation and whitespace do not
// count.
func (m Match) CarriesContent(raw string) bool {
	rest := raw
	switch {
	case m.prefix:
		rest = strings.TrimPrefix(strings.TrimLeftFunc(raw, unicode.IsSpace), m.Phrase)
	case m.Phrase != "":
		rest = strings.Replace(raw, m.Phrase, "", 1)
	}
	return strings.IndexFunc(rest, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func nonEmpty(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
