package executor

import (
	"fmt"
	"strings"
)

// String renders the run summary as plain text. cmd/precog always prints
// this and, when stdout is a terminal, also prints the Markdown form.
func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "manifest: %s\n", r.ManifestID)
	fmt.Fprintf(&b, "duration: %s\n", r.Duration.Round(1e6))
	fmt.Fprintf(&b, "requests: %d total, %d successful, %d failed\n", r.Total, r.Successful, r.Failed)
	fmt.Fprintf(&b, "unique endpoints: %d\n", r.UniqueEndpoints)
	if len(r.Ratelimits) > 0 {
		fmt.Fprintln(&b, "ratelimits:")
		for _, rl := range r.Ratelimits {
			fmt.Fprintf(&b, "  - %s\n", rl)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(&b, "errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

// Markdown renders the run summary as a Markdown document, for TTY output
// through glamour.
func (r *Result) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run summary: %s\n\n", r.ManifestID)
	fmt.Fprintf(&b, "- **duration**: %s\n", r.Duration.Round(1e6))
	fmt.Fprintf(&b, "- **requests**: %d total, %d successful, %d failed\n", r.Total, r.Successful, r.Failed)
	fmt.Fprintf(&b, "- **unique endpoints**: %d\n", r.UniqueEndpoints)
	if len(r.Ratelimits) > 0 {
		fmt.Fprintln(&b, "\n## Ratelimits\n")
		for _, rl := range r.Ratelimits {
			fmt.Fprintf(&b, "- %s\n", rl)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(&b, "\n## Errors\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}
