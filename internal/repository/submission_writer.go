package repository

import (
	"context"
	"fmt"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionWriter 写入一次完整提交：结果行与已提交名单
type SubmissionWriter interface {
	WriteSubmission(ctx context.Context, submitter string, rows []model.ResultRow) error
}

// SplitWriter 结果与名单分属不同存储时依次写入，两者之间不具原子性
type SplitWriter struct {
	Results  ResultStore
	Registry SubmissionRegistry
}

func NewSplitWriter(results ResultStore, registry SubmissionRegistry) *SplitWriter {
	return &SplitWriter{Results: results, Registry: registry}
}

func (w *SplitWriter) WriteSubmission(ctx context.Context, submitter string, rows []model.ResultRow) error {
	if err := w.Results.Append(ctx, rows); err != nil {
		return fmt.Errorf("append results: %w", err)
	}
	if err := w.Registry.Add(ctx, submitter); err != nil {
		// 结果已写入但名单未更新，需通过 reconcile 报表人工处理
		logger.Log.Error("Results written but registry update failed",
			zap.String("submitter", submitter),
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		return fmt.Errorf("add submission record: %w", err)
	}
	return nil
}

// TxWriter 结果与名单都在数据库中时，在同一事务内写入
type TxWriter struct {
	DB       *gorm.DB
	SurveyID string
}

func NewTxWriter(db *gorm.DB, surveyID string) *TxWriter {
	return &TxWriter{DB: db, SurveyID: surveyID}
}

func (w *TxWriter) WriteSubmission(ctx context.Context, submitter string, rows []model.ResultRow) error {
	return w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appendResults(tx, w.SurveyID, rows); err != nil {
			return fmt.Errorf("append results: %w", err)
		}
		if err := addSubmission(tx, w.SurveyID, submitter); err != nil {
			return fmt.Errorf("add submission record: %w", err)
		}
		return nil
	})
}
