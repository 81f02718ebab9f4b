package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/s3conform/pkg/domain"
)

// LogHooks writes suite boundaries at info level and case results at debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSuiteStart: func(ctx context.Context, e *domain.SuiteEvent) {
			logger.DebugContext(ctx, "suite_start", "service", e.Service, "suite_id", e.SuiteID)
		},
		OnSuiteFinish: func(ctx context.Context, e *domain.SuiteEvent) {
			logger.InfoContext(ctx, "suite_finish",
				"service", e.Service,
				"suite_id", e.SuiteID,
				"state", e.State,
				"duration", e.Duration,
			)
		},
		OnCaseFinish: func(ctx context.Context, e *domain.CaseEvent) {
			logger.DebugContext(ctx, "case_finish",
				"service", e.Service,
				"suite_id", e.SuiteID,
				"operation", e.Operation,
				"identity", e.Identity,
				"success", e.Success,
			)
		},
	}
}
