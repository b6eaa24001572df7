package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *CandidateRenderer
}

// NewOutputFormatter creates a formatter, enabling color for terminals.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewCandidateRenderer(useColor),
	}
}

// Handle prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		query, _ := event.Data["query"].(string)
		return fmt.Sprintf("%s Query: %s", latency, truncateQuery(query))

	case QueryCompleted:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Query done with %s.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("tuples", intValue(event.Data["tuples.count"])))

	case AliasScan:
		alias, _ := event.Data["alias"].(string)
		property, _ := event.Data["property"].(string)
		test, _ := event.Data["test"].(string)
		scan, _ := event.Data["scan"].(string)

		var scanStr string
		if f.useColor {
			scanStr = fmt.Sprintf("%s%s%s",
				color.BlueString("Scan("),
				color.CyanString("%s.%s %s, %s", alias, property, test, scan),
				color.BlueString(")"))
		} else {
			scanStr = fmt.Sprintf("Scan(%s.%s %s, %s)", alias, property, test, scan)
		}
		return fmt.Sprintf("%s %s → %s of %s",
			latency,
			scanStr,
			f.colorizeCount("matches", intValue(event.Data["match.count"])),
			f.colorizeCount("entries", intValue(event.Data["entries.scanned"])))

	case AliasPruned:
		alias, _ := event.Data["alias"].(string)
		before := intValue(event.Data["before"])
		after := intValue(event.Data["after"])
		return fmt.Sprintf("%s Pruned %s → %s (all %d properties)",
			latency,
			f.renderer.RenderCandidates(alias, before),
			f.renderer.RenderCandidates(alias, after),
			intValue(event.Data["props"]))

	case JoinResolved:
		alias, _ := event.Data["alias"].(string)
		target, _ := event.Data["target"].(string)
		property, _ := event.Data["property"].(string)
		return fmt.Sprintf("%s Join %s.%s → %s with %s",
			latency,
			alias,
			property,
			f.renderer.RenderCandidates(target, intValue(event.Data["target.count"])),
			f.colorizeCount("links", intValue(event.Data["link.count"])))

	case JoinCrossProduct:
		aliases, _ := event.Data["aliases"].([]string)
		sizes, _ := event.Data["sizes"].([]int)
		product := f.renderer.RenderProduct(aliases, sizes)
		if provenance, _ := event.Data["provenance"].(bool); provenance {
			return fmt.Sprintf("%s %s (co-verified pairs only)", latency, product)
		}
		return fmt.Sprintf("%s %s", latency, product)

	case WriteInsert, WriteUpdate, WriteDelete:
		verb := strings.TrimPrefix(event.Name, "write/")
		return fmt.Sprintf("%s %s %v", latency, f.colorize(verb, color.FgYellow), event.Data["id"])

	case ErrorQueryBinding, ErrorBackend:
		return fmt.Sprintf("%s %s %v", latency, f.colorize(event.Name, color.FgRed), event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func intValue(v interface{}) int {
	n, _ := v.(int)
	return n
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)
	if !f.useColor {
		return text
	}

	switch label {
	case "tuples":
		return color.MagentaString(text)
	case "matches", "links":
		return color.CyanString(text)
	case "entries":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncateQuery shortens long queries for display.
func truncateQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")

	const maxLen = 80
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen-3] + "..."
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal is a coarse check for stdout or stderr.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
