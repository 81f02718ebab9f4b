package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReportStoreContract runs a suite of tests to verify that a ReportStore
// implementation adheres to the interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	reportID := "contract-report-" + time.Now().Format("20060102150405")

	newReport := func(id string) *domain.RunReport {
		ok := true
		return &domain.RunReport{
			ID:         id,
			Service:    "s3",
			StartedAt:  time.Now().UTC().Truncate(time.Second),
			FinishedAt: time.Now().UTC().Truncate(time.Second),
			Summary:    domain.Summary{SuiteTotal: 2, SuitePassCount: 1, SuiteFailedCount: 1, CaseTotal: 3},
			Topics:     []*domain.TopicNode{{Title: domain.BucketPass, Children: []*domain.TopicNode{{Title: "CreateBucket", Labels: []string{"admin-200"}}}}},
			Suites: []*domain.LinearSuite{{
				ID:    "__s3__@contract@__1__",
				State: domain.SuitePassed,
				Cases: []*domain.CaseNode{{Operation: "CreateBucket", Success: &ok, Parameters: map[string]any{"Bucket": "b-1"}}},
			}},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		report := newReport(reportID)
		require.NoError(t, store.Save(ctx, report), "Save should not return error")

		loaded, err := store.Load(ctx, reportID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, report.Service, loaded.Service)
		assert.Equal(t, report.Summary, loaded.Summary)
		require.Len(t, loaded.Topics, 1)
		assert.Equal(t, "admin-200", loaded.Topics[0].Children[0].Label())
		require.Len(t, loaded.Suites, 1)
		assert.True(t, loaded.Suites[0].Cases[0].Passed())
		assert.Equal(t, "b-1", loaded.Suites[0].Cases[0].Parameters["Bucket"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+reportID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newReport(reportID)))
		require.NoError(t, store.Delete(ctx, reportID), "Delete should not return error")

		_, err := store.Load(ctx, reportID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound, "Load after Delete should return ErrReportNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := reportID + "-1"
		id2 := reportID + "-2"
		require.NoError(t, store.Save(ctx, newReport(id1)))
		require.NoError(t, store.Save(ctx, newReport(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
