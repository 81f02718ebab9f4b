package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.ReportStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks, before saving, the values of every key matching
// one of the patterns: in case parameters, assertions, responses and suite
// locals, and inside JSON topic notes.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, 0, len(patternStrings))
	for _, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "report_store.redact", Reason: "invalid pattern " + p, Err: err}
		}
		patterns = append(patterns, re)
	}
	return func(next ports.ReportStore) ports.ReportStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, report *domain.RunReport) error {
	// Deep clone so the report held by the caller keeps its values.
	cloned, err := cloneReport(report)
	if err != nil {
		return err
	}

	for _, suite := range cloned.Suites {
		for _, c := range suite.Cases {
			maskMap(c.Parameters, m.patterns)
			maskMap(c.Assertion, m.patterns)
			maskMap(c.Response, m.patterns)
			maskMap(c.SuiteLocals, m.patterns)
		}
	}
	for _, t := range cloned.Topics {
		t.Walk(func(n *domain.TopicNode) {
			n.Notes = m.maskNotes(n.Notes)
		})
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*domain.RunReport, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) maskNotes(notes string) string {
	var doc map[string]any
	if json.Unmarshal([]byte(notes), &doc) != nil {
		return notes
	}
	if !maskMap(doc, m.patterns) {
		return notes
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return notes
	}
	return string(out)
}

// Helpers

func cloneReport(r *domain.RunReport) (*domain.RunReport, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to clone report: %w", err)
	}
	var out domain.RunReport
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to clone report: %w", err)
	}
	return &out, nil
}

// maskMap masks matching keys recursively and reports whether anything changed.
func maskMap(m map[string]any, patterns []*regexp.Regexp) bool {
	changed := false
	for k, v := range m {
		matched := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				matched = true
				changed = true
				break
			}
		}
		if !matched && maskValue(v, patterns) {
			changed = true
		}
	}
	return changed
}

func maskValue(v any, patterns []*regexp.Regexp) bool {
	switch t := v.(type) {
	case map[string]any:
		return maskMap(t, patterns)
	case []any:
		changed := false
		for _, e := range t {
			if maskValue(e, patterns) {
				changed = true
			}
		}
		return changed
	}
	return false
}
