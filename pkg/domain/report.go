package domain

import "time"

// Summary aggregates suite and case outcomes of one service run.
type Summary struct {
	SuiteTotal        int `json:"suiteTotal"`
	SuitePassCount    int `json:"suitePassCount"`
	SuiteFailedCount  int `json:"suiteFailedCount"`
	SuiteSkippedCount int `json:"suiteSkippedCount"`
	CaseTotal         int `json:"caseTotal"`
	CasePassCount     int `json:"casePassCount"`
	CaseFailedCount   int `json:"caseFailedCount"`
	CaseSkippedCount  int `json:"caseSkippedCount"`
	APIInvokedCount   int `json:"apiInvokedCount"`
}

// Failed reports whether any suite failed.
func (s Summary) Failed() bool {
	return s.SuiteFailedCount > 0
}

// RunReport is the persisted record of one service run.
type RunReport struct {
	ID         string         `json:"id"`
	Service    string         `json:"service"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    Summary        `json:"summary"`
	Topics     []*TopicNode   `json:"topics,omitempty"`
	Suites     []*LinearSuite `json:"suites,omitempty"`
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
