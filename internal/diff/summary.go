package diff

import (
	"fmt"
	"strings"

	"github.com/roach88/runproof/internal/canon"
)

// Summary renders the result for terminals and logs.
func (r *Result) Summary() string {
	var b strings.Builder

	verdict := "identical"
	if !r.Identical {
		verdict = "diverged"
	}
	fmt.Fprintf(&b, "diff %s -> %s: %s\n", r.LeftRunID, r.RightRunID, verdict)
	fmt.Fprintf(&b, "  steps: left=%d right=%d", r.LeftStepCount, r.RightStepCount)
	for _, s := range Statuses {
		fmt.Fprintf(&b, " %s=%d", s, r.StatusCounts[s])
	}
	b.WriteString("\n")
	if r.StoppedEarly {
		b.WriteString("  scan stopped at first divergence\n")
	}

	if fd := r.FirstDivergence; fd != nil {
		fmt.Fprintf(&b, "  first divergence: step %d (%s) %s\n", fd.Index, fd.Status, fd.StepType)
		for _, ch := range fd.Changes {
			fmt.Fprintf(&b, "    %s %s: %s -> %s\n",
				pathLabel(ch.Path), ch.Kind, renderValue(ch.Left), renderValue(ch.Right))
		}
		if fd.Truncated {
			b.WriteString("    ... (truncated)\n")
		}
	}
	return b.String()
}

func pathLabel(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func renderValue(v canon.Value) string {
	if v == nil {
		return "<missing>"
	}
	data, err := canon.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	const maxLen = 80
	if len(data) > maxLen {
		return string(data[:maxLen-3]) + "..."
	}
	return string(data)
}
