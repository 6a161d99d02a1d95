package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/pipeline"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

const previewLimit = 1000

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	fileStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// renderEvent prints one progress line. An error event is printed and
// returned.
func renderEvent(out io.Writer, ev rpc.RunEvent) error {
	switch ev.Type {
	case rpc.EventStepStarted:
		if ev.Iteration > 0 {
			fmt.Fprintf(out, "[%s] iteration %d started\n", ev.Step, ev.Iteration)
		} else {
			fmt.Fprintf(out, "[%s] started\n", ev.Step)
		}
	case rpc.EventStepFinished:
		line := fmt.Sprintf("[%s] finished", ev.Step)
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		if len(ev.Files) > 0 {
			line += " (" + strings.Join(ev.Files, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	case rpc.EventScaffoldUsed:
		fmt.Fprintf(out, "[%s] fallback scaffold used: %s\n", ev.Step, ev.Message)
	case rpc.EventQAResult:
		fmt.Fprintf(out, "[QA] tests_passed=%v %s\n", ev.TestsPassed != nil && *ev.TestsPassed, ev.Message)
	case rpc.EventDone:
		fmt.Fprintf(out, "[done] iterations=%d tests_passed=%v files=%s\n",
			ev.Iteration, ev.TestsPassed != nil && *ev.TestsPassed, strings.Join(ev.Files, ", "))
	case rpc.EventError:
		msg := ev.Error
		if msg == "" {
			msg = ev.Message
		}
		fmt.Fprintf(out, "[error] %s\n", msg)
		return fmt.Errorf("run failed: %s", msg)
	}
	return nil
}

// renderSummary formats a finished run: verdict, file list and a preview of
// index.html.
func renderSummary(sum pipeline.Summary) string {
	var b strings.Builder

	verdict := failStyle.Render("QA failed")
	if sum.TestsPassed {
		verdict = passStyle.Render("QA passed")
	}
	fmt.Fprintf(&b, "%s after %d iteration(s) in %s\n", verdict, sum.Iterations, sum.Duration.Round(time.Millisecond))
	if sum.Feedback != "" {
		fmt.Fprintln(&b, faintStyle.Render(sum.Feedback))
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, headingStyle.Render("Generated files"))
	if len(sum.GeneratedFiles) == 0 {
		fmt.Fprintln(&b, faintStyle.Render("  (none)"))
	}
	for _, name := range sum.GeneratedFiles {
		fmt.Fprintf(&b, "  • %s\n", fileStyle.Render(name))
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, headingStyle.Render("index.html preview"))
	if html, ok := sum.Files["index.html"]; ok {
		fmt.Fprintln(&b, preview(html, previewLimit))
	} else {
		fmt.Fprintln(&b, faintStyle.Render("<no index.html generated>"))
	}
	return b.String()
}

func preview(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
