package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

// FailureDigest renders the failed suites of every report as markdown. It
// returns "" when nothing failed.
func FailureDigest(reports []*domain.RunReport) string {
	var b strings.Builder
	for _, r := range reports {
		var failed []*domain.LinearSuite
		for _, s := range r.Suites {
			if s.State == domain.SuiteFailed {
				failed = append(failed, s)
			}
		}
		if len(failed) == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("# Failures\n\n")
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", r.Service, len(failed))
		for _, s := range failed {
			fmt.Fprintf(&b, "### %s\n\n", s.VisiblePath)
			c := failedCase(s)
			if c == nil {
				continue
			}
			fmt.Fprintf(&b, "- **case**: `%s`\n", c.DisplayTitle())
			if c.ClientIdentity != "" {
				fmt.Fprintf(&b, "- **identity**: `%s`\n", c.ClientIdentity)
			}
			if c.ErrorInfo != "" {
				fmt.Fprintf(&b, "- **error**: %s\n", c.ErrorInfo)
			}
			b.WriteString("\n")
			if len(c.Response) > 0 {
				data, _ := json.MarshalIndent(c.Response, "", "  ")
				fmt.Fprintf(&b, "```json\n%s\n```\n\n", data)
			}
		}
	}
	return b.String()
}

func failedCase(s *domain.LinearSuite) *domain.CaseNode {
	for _, c := range s.Cases {
		if c.Failed() {
			return c
		}
	}
	return nil
}
