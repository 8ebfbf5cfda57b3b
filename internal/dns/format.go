package dns

import (
	"fmt"
	"strings"
)

// FormatResult returns a human-readable summary of a Sync run.
func FormatResult(res Result) string {
	var b strings.Builder

	if len(res.Domains) == 0 {
		fmt.Fprintf(&b, "No domains processed.\n")
		return b.String()
	}

	for _, d := range res.Domains {
		fmt.Fprintf(&b, "%s:\n", d.Domain)
		fmt.Fprintf(&b, "  updated: %d\n", d.Updated)
		if d.SkippedVirtual > 0 {
			fmt.Fprintf(&b, "  skipped virtual: %d\n", d.SkippedVirtual)
		}
	}
	fmt.Fprintf(&b, "Total updated: %d\n", res.Updated())

	return b.String()
}
