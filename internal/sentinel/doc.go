// Package sentinel detects payloads that end a conversation.
//
// A Detector holds three rules, evaluated in order:
//
//  1. error prefix: the payload starts with "Error:" → TerminalFailure
//  2. failure phrases: the payload contains any of them → TerminalFailure
//  3. success phrases: the payload contains any of them → TerminalSuccess
//
// Anything else is NonTerminal.
//
// Phrase matching is a case-sensitive substring test, not equality. The
// server appends punctuation and trailing context to its closing lines, so
// a phrase anywhere in the payload ends the exchange, even mid-sentence.
package sentinel
