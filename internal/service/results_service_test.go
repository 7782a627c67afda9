package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newResultsFixture(t *testing.T) (*ResultsService, *repository.CSVResultRepository, *repository.CSVSubmissionRepository) {
	t.Helper()
	cfg := testSurveyConfig(t)
	results := repository.NewCSVResultRepository(cfg.ResultsPath)
	registry := repository.NewCSVSubmissionRepository(cfg.RegistryPath)
	return NewResultsService(results, registry), results, registry
}

func TestResultsReconcile(t *testing.T) {
	svc, results, registry := newResultsFixture(t)
	ctx := context.Background()

	require.NoError(t, results.Append(ctx, []model.ResultRow{
		{Submitter: "A", Project: "P", Reviewee: "B", Category: "甲", Subitem: "一", Score: 5, SubmittedAt: "2025-03-31 09:30:00"},
		{Submitter: "C", Project: "P", Reviewee: "B", Category: "甲", Subitem: "一", Score: 6, SubmittedAt: "2025-03-31 09:31:00"},
	}))
	require.NoError(t, registry.Add(ctx, "A"))
	require.NoError(t, registry.Add(ctx, "D"))

	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []string{"D"}, report.RegisteredWithoutResults)
	assert.Equal(t, []string{"C"}, report.ResultsWithoutRegistry)
	assert.Equal(t, 2, report.ResultRows)
	assert.Equal(t, 2, report.Submitters)
}

func TestResultsReconcileEmpty(t *testing.T) {
	svc, _, _ := newResultsFixture(t)

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 0, report.ResultRows)
}

func TestResultsExportWorkbook(t *testing.T) {
	svc, results, registry := newResultsFixture(t)
	ctx := context.Background()

	require.NoError(t, results.Append(ctx, []model.ResultRow{
		{Submitter: "A", Project: "P", Reviewee: "B", Category: "甲", Subitem: "一", Score: 5, SubmittedAt: "2025-03-31 09:30:00"},
	}))
	require.NoError(t, registry.Add(ctx, "A"))

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{resultsSheet, submissionsSheet}, f.GetSheetList())

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.ResultHeader, rows[0])
	assert.Equal(t, []string{"A", "P", "B", "甲", "一", "5", "2025-03-31 09:30:00"}, rows[1])

	submitted, err := f.GetRows(submissionsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"填答者"}, {"A"}}, submitted)
}

func TestResultsClearKeepsRegistry(t *testing.T) {
	svc, results, registry := newResultsFixture(t)
	ctx := context.Background()

	require.NoError(t, results.Append(ctx, []model.ResultRow{
		{Submitter: "A", Project: "P", Reviewee: "B", Category: "甲", Subitem: "一", Score: 5, SubmittedAt: "2025-03-31 09:30:00"},
	}))
	require.NoError(t, registry.Add(ctx, "A"))

	require.NoError(t, svc.Clear(ctx))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	records, err := svc.Submissions(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
