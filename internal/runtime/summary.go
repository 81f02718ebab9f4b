package runtime

import "github.com/aretw0/s3conform/pkg/domain"

// Summarize counts suite and case outcomes. Only operation cases are counted;
// hidden cases that passed are left out, and extraCalls adds the requests
// issued by predefined operations.
func Summarize(suites []*domain.LinearSuite, extraCalls int) domain.Summary {
	var s domain.Summary
	s.SuiteTotal = len(suites)
	for _, suite := range suites {
		switch suite.State {
		case domain.SuitePassed:
			s.SuitePassCount++
		case domain.SuiteFailed:
			s.SuiteFailedCount++
		case domain.SuiteSkipped:
			s.SuiteSkippedCount++
		}

		for _, c := range suite.Cases {
			if c.Operation == "" {
				continue
			}
			switch {
			case c.Passed():
				if c.IsHidden() {
					continue
				}
				s.CasePassCount++
			case c.Failed():
				s.CaseFailedCount++
			default:
				s.CaseSkippedCount++
			}
			if c.Executed() && c.ClientIdentity != "" {
				s.APIInvokedCount++
			}
			s.CaseTotal++
		}
	}
	s.APIInvokedCount += extraCalls
	return s
}
