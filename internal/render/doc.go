// Package render draws parsed turns. Text writes colored terminal output;
// HTML writes the message markup of the web conversation view, with prose
// converted from markdown and code segments kept verbatim.
package render
