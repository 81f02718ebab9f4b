package domain

import (
	"context"
	"time"
)

// SuiteEvent represents a suite entering or leaving execution.
type SuiteEvent struct {
	Service  string        `json:"service"`
	SuiteID  string        `json:"suite_id"`
	Path     string        `json:"path"`
	State    SuiteState    `json:"state"`
	Duration time.Duration `json:"duration,omitempty"`
}

// CaseEvent represents one executed case.
type CaseEvent struct {
	Service   string        `json:"service"`
	SuiteID   string        `json:"suite_id"`
	Title     string        `json:"title"`
	Operation string        `json:"operation"`
	Identity  string        `json:"identity,omitempty"`
	Success   bool          `json:"success"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSuiteStart  func(context.Context, *SuiteEvent)
	OnSuiteFinish func(context.Context, *SuiteEvent)
	OnCaseFinish  func(context.Context, *CaseEvent)
}

// Merge returns hooks calling h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSuiteStart:  chainSuite(h.OnSuiteStart, other.OnSuiteStart),
		OnSuiteFinish: chainSuite(h.OnSuiteFinish, other.OnSuiteFinish),
		OnCaseFinish:  chainCase(h.OnCaseFinish, other.OnCaseFinish),
	}
}

func chainSuite(a, b func(context.Context, *SuiteEvent)) func(context.Context, *SuiteEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *SuiteEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainCase(a, b func(context.Context, *CaseEvent)) func(context.Context, *CaseEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *CaseEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
