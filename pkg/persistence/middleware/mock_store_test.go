package middleware_test

import (
	"context"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.RunReport
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.RunReport),
	}
}

func (s *MockStore) Save(ctx context.Context, report *domain.RunReport) error {
	s.data[report.ID] = report
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.RunReport, error) {
	report, ok := s.data[id]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return report, nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.ReportStore = (*MockStore)(nil)
