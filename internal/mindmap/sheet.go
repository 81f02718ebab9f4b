package mindmap

import (
	"fmt"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

// BuildSheet wraps the bucket topics of one service into a report sheet whose
// root carries the run summary.
func BuildSheet(service string, summary domain.Summary, buckets []*domain.TopicNode) *domain.Sheet {
	return &domain.Sheet{
		Title: service,
		Root: &domain.TopicNode{
			Title: strings.ToUpper(service) + "-Tests",
			Notes: SummaryNotes(summary),
			Style: map[string]string{
				"fill-pattern": "solid",
				"line-color":   "#9C27B0",
				"svg:fill":     "#9C27B0FF",
				"line-pattern": "solid",
				"line-width":   "3pt",
			},
			Children: buckets,
		},
	}
}

// SummaryNotes renders the summary as two titled blocks.
func SummaryNotes(s domain.Summary) string {
	var b strings.Builder
	b.WriteString("### Suite Summary ###\n")
	fmt.Fprintf(&b, "suiteTotal: %d\nsuitePassCount: %d\nsuiteFailedCount: %d\nsuiteSkippedCount: %d",
		s.SuiteTotal, s.SuitePassCount, s.SuiteFailedCount, s.SuiteSkippedCount)
	b.WriteString("\n\n### Suite Case Summary ###\n")
	fmt.Fprintf(&b, "caseTotal: %d\ncasePassCount: %d\ncaseFailedCount: %d\ncaseSkippedCount: %d\napiInvokedCount: %d",
		s.CaseTotal, s.CasePassCount, s.CaseFailedCount, s.CaseSkippedCount, s.APIInvokedCount)
	return b.String()
}
