package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary writes one table row per service report.
func RenderSummary(w io.Writer, reports []*domain.RunReport, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	paint := func(c text.Color, v any) any {
		if !color {
			return v
		}
		return c.Sprint(v)
	}

	t.AppendHeader(table.Row{
		"SERVICE", "SUITES", "PASS", "FAILED", "SKIPPED",
		"CASES", "CASE PASS", "CASE FAILED", "CASE SKIPPED", "API CALLS", "DURATION",
	})
	var total domain.Summary
	for _, r := range reports {
		s := r.Summary
		t.AppendRow(table.Row{
			r.Service, s.SuiteTotal,
			paint(text.FgGreen, s.SuitePassCount),
			paint(text.FgRed, s.SuiteFailedCount),
			paint(text.FgHiBlack, s.SuiteSkippedCount),
			s.CaseTotal, s.CasePassCount, s.CaseFailedCount, s.CaseSkippedCount,
			s.APIInvokedCount, r.Duration().Round(time.Millisecond).String(),
		})
		total = add(total, s)
	}
	if len(reports) > 1 {
		t.AppendFooter(table.Row{
			"TOTAL", total.SuiteTotal, total.SuitePassCount, total.SuiteFailedCount, total.SuiteSkippedCount,
			total.CaseTotal, total.CasePassCount, total.CaseFailedCount, total.CaseSkippedCount,
			total.APIInvokedCount, "",
		})
	}
	t.Render()

	status := "PASS"
	c := text.FgGreen
	if total.Failed() {
		status, c = "FAILED", text.FgRed
	}
	fmt.Fprintf(w, "\n%s %s\n", paint(text.FgHiBlue, "Result:"), paint(c, status))
}

func add(a, b domain.Summary) domain.Summary {
	return domain.Summary{
		SuiteTotal:        a.SuiteTotal + b.SuiteTotal,
		SuitePassCount:    a.SuitePassCount + b.SuitePassCount,
		SuiteFailedCount:  a.SuiteFailedCount + b.SuiteFailedCount,
		SuiteSkippedCount: a.SuiteSkippedCount + b.SuiteSkippedCount,
		CaseTotal:         a.CaseTotal + b.CaseTotal,
		CasePassCount:     a.CasePassCount + b.CasePassCount,
		CaseFailedCount:   a.CaseFailedCount + b.CaseFailedCount,
		CaseSkippedCount:  a.CaseSkippedCount + b.CaseSkippedCount,
		APIInvokedCount:   a.APIInvokedCount + b.APIInvokedCount,
	}
}
