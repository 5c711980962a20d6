// ABOUTME: Scripted solver/reviewer exchange served by the fake council server
// ABOUTME: Mirrors the iteration loop and closing lines of the real server

package devserver

import "fmt"

// DefaultMaxIterations matches the real server's iteration cap.
const DefaultMaxIterations = 5

// DefaultScript runs one successful iteration for prompt.
func DefaultScript(prompt, model string) []string {
	return IterationScript(1, true)(prompt, model)
}

// IterationScript returns a script of n solver/reviewer iterations. When
// solved is true the reviewer accepts the last iteration; otherwise the
// exchange ends without a verified solution.
func IterationScript(n int, solved bool) ScriptFunc {
	return func(prompt, model string) []string {
		var records []string
		for i := 1; i <= n; i++ {
			records = append(records,
				fmt.Sprintf("\n--- Iteration %d ---", i),
				fmt.Sprintf("Solver: **Application Name:** demo_app\n# File: app.py\n```python\nprint(%q)\n```", prompt),
				"Execution Feedback:\nOutput:\n"+prompt+"\nErrors:\n",
			)
			if solved && i == n {
				records = append(records,
					"Reviewer: The problem is solved. The output matches the request.",
					"Both agents agree that the problem is solved.",
				)
				return records
			}
			records = append(records,
				"Reviewer: The output is missing input validation.",
				fmt.Sprintf("Solver refined response:\nAdded validation in iteration %d.", i),
			)
		}
		return append(records, "Conversation ended without a verified solution.")
	}
}

// Records returns a script that always sends records verbatim.
func Records(records ...string) ScriptFunc {
	return func(string, string) []string {
		return append([]string(nil), records...)
	}
}
