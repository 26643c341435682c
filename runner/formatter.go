package runner

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ResultFormatter renders a cross-platform run for a human.
type ResultFormatter interface {
	FormatResult(result *RunResult) error
}

// ConsoleResultFormatter writes a summary table to an io.Writer.
type ConsoleResultFormatter struct {
	out io.Writer
}

// NewConsoleResultFormatter creates a formatter writing to stdout when out
// is nil.
func NewConsoleResultFormatter(out io.Writer) *ConsoleResultFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{out: out}
}

// FormatResult renders one table row per platform plus the comparison rows.
func (f *ConsoleResultFormatter) FormatResult(result *RunResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test %q (%s)", result.TestName, formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Platform", "Status", "Steps", "Passed", "Rate", "Duration", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Platform", WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Steps", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Rate", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})

	allPassed := len(result.Errors) == 0
	for _, platform := range sortedKeys(result.Platforms) {
		summary := result.Platforms[platform]
		if !summary.Success {
			allPassed = false
		}
		t.AppendRow(table.Row{
			platform,
			statusString(summary.Success),
			summary.TotalSteps,
			summary.SuccessfulSteps,
			fmt.Sprintf("%.0f%%", summary.SuccessRate*100),
			formatDuration(summary.Duration),
			"",
		})
	}
	for _, platform := range sortedKeys(result.Errors) {
		t.AppendRow(table.Row{platform, "error", "-", "-", "-", "-", result.Errors[platform]})
	}

	if len(result.Comparisons) > 0 {
		t.AppendSeparator()
		for _, c := range result.Comparisons {
			t.AppendRow(table.Row{
				fmt.Sprintf("%s vs %s", c.PlatformA, c.PlatformB),
				parityString(c.SuccessParity),
				"",
				fmt.Sprintf("%d/%d", c.StepsA, c.StepsB),
				"",
				"",
				"",
			})
		}
	}

	if allPassed {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.Render()
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func statusString(success bool) string {
	if success {
		return "pass"
	}
	return "fail"
}

func parityString(parity bool) string {
	if parity {
		return "match"
	}
	return "diverged"
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
