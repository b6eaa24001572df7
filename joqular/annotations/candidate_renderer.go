package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// CandidateRenderer pretty-prints per-alias candidate sets
type CandidateRenderer struct {
	useColor bool
}

// NewCandidateRenderer creates a new candidate renderer
func NewCandidateRenderer(useColor bool) *CandidateRenderer {
	return &CandidateRenderer{useColor: useColor}
}

// RenderCandidates renders one alias and its candidate count
func (r *CandidateRenderer) RenderCandidates(alias string, count int) string {
	if r.useColor {
		return fmt.Sprintf("%s%s%s%s",
			color.BlueString("Candidates("),
			color.CyanString(alias),
			color.BlueString(", ")+r.colorizeCount("ids", count),
			color.BlueString(")"))
	}
	return fmt.Sprintf("Candidates(%s, %d ids)", alias, count)
}

// RenderProduct renders the cross product of several candidate sets
func (r *CandidateRenderer) RenderProduct(aliases []string, sizes []int) string {
	parts := make([]string, len(aliases))
	total := 1
	for i, alias := range aliases {
		n := 0
		if i < len(sizes) {
			n = sizes[i]
		}
		total *= n
		parts[i] = r.RenderCandidates(alias, n)
	}
	if len(aliases) == 0 {
		total = 0
	}

	op := " × "
	arrow := " → "
	if r.useColor {
		op = color.YellowString(op)
		arrow = color.YellowString(arrow)
	}
	return strings.Join(parts, op) + arrow + r.colorizeCount("combinations", total)
}

// colorizeCount formats a count with color based on size
func (r *CandidateRenderer) colorizeCount(label string, count int) string {
	if !r.useColor {
		return fmt.Sprintf("%d %s", count, label)
	}

	countStr := fmt.Sprintf("%d", count)
	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}
	return fmt.Sprintf("%s %s", countStr, label)
}
