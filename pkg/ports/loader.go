package ports

import (
	"context"

	"github.com/aretw0/s3conform/pkg/domain"
)

// SuiteLoader supplies authored suite definitions grouped by service.
// This allows suite storage (YAML files, mind maps, memory) to be decoupled.
type SuiteLoader interface {
	Load(ctx context.Context) ([]*domain.SuiteSource, error)
}
