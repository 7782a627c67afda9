package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "peer_review.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ResultRow{}, &model.SubmissionRecord{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestResultRepositoryScopedBySurvey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	q1 := NewResultRepository(db, "2025Q1")
	q2 := NewResultRepository(db, "2025Q2")

	require.NoError(t, q1.Append(ctx, resultRows("A", 3)))
	require.NoError(t, q2.Append(ctx, resultRows("A", 2)))
	require.NoError(t, q1.Append(ctx, resultRows("D", 4)))

	rows, err := q1.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "A", rows[0].Submitter)
	assert.Equal(t, "D", rows[6].Submitter)
	assert.Equal(t, "2025Q1", rows[6].SurveyID)

	require.NoError(t, q1.Clear(ctx))
	rows, err = q1.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = q2.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmissionRepositoryUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSubmissionRepository(db, "2025Q1")

	require.NoError(t, repo.Add(ctx, "A"))
	assert.Error(t, repo.Add(ctx, "A"))

	ok, err := repo.Contains(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewSubmissionRepository(db, "2025Q2").Contains(ctx, "A")
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTxWriterRollsBackOnRegistryFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	results := NewResultRepository(db, "2025Q1")
	registry := NewSubmissionRepository(db, "2025Q1")
	writer := NewTxWriter(db, "2025Q1")

	require.NoError(t, writer.WriteSubmission(ctx, "A", resultRows("A", 4)))

	// 名单写入冲突时结果行一并回滚
	err := writer.WriteSubmission(ctx, "A", resultRows("A", 4))
	require.Error(t, err)

	rows, err := results.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSplitWriterMixedStores(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	results := NewCSVResultRepository(filepath.Join(t.TempDir(), "results.csv"))
	registry := NewSubmissionRepository(db, "2025Q1")
	writer := NewSplitWriter(results, registry)

	require.NoError(t, writer.WriteSubmission(ctx, "A", resultRows("A", 2)))

	// 结果已追加但名单冲突，由对账报表发现
	err := writer.WriteSubmission(ctx, "A", resultRows("A", 2))
	require.Error(t, err)

	rows, err := results.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
