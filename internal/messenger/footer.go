package messenger

import (
	"fmt"
	"strings"

	"github.com/simplesurance/bert-e/internal/gating"
)

// renderFooter builds the status-report footer every emitted message
// ends with: the status code, bert-e's version, and the currently
// active sticky options (spec §7 "Every emitted message ends with a
// footer containing the code, robot version, and currently active
// options").
func renderFooter(code int, robotVersion string, activeOptions []string) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "_Status: %s (%d) | bert-e %s", gating.StatusCode(code).String(), code, robotVersion)

	if len(activeOptions) > 0 {
		fmt.Fprintf(&b, " | active options: %s", strings.Join(activeOptions, ", "))
	}

	b.WriteString("_")

	return b.String(), nil
}
