package ports

import (
	"context"

	"github.com/aretw0/s3conform/pkg/domain"
)

// ReportStore persists run reports.
type ReportStore interface {
	// Save persists the report under report.ID.
	Save(ctx context.Context, report *domain.RunReport) error

	// Load retrieves a report by ID.
	// Returns domain.ErrReportNotFound if the report does not exist.
	Load(ctx context.Context, id string) (*domain.RunReport, error)

	// Delete removes a report.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of stored reports.
	List(ctx context.Context) ([]string, error)
}

// ReportSink serializes report sheets into a persisted container and returns
// its location.
type ReportSink interface {
	Write(ctx context.Context, sheets []*domain.Sheet) (string, error)
}

// Counter is a monotonic counter shared by every suite of a run.
type Counter interface {
	Next(ctx context.Context) (int64, error)
}
