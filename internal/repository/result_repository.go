package repository

import (
	"context"

	"github.com/YJLINa/peer-review-form/internal/model"
	"gorm.io/gorm"
)

// ResultStore 结果表，只追加；除显式清空外不改写已有行
type ResultStore interface {
	Append(ctx context.Context, rows []model.ResultRow) error
	List(ctx context.Context) ([]model.ResultRow, error)
	Clear(ctx context.Context) error
}

type ResultRepository struct {
	DB       *gorm.DB
	SurveyID string
}

func NewResultRepository(db *gorm.DB, surveyID string) *ResultRepository {
	return &ResultRepository{DB: db, SurveyID: surveyID}
}

func (r *ResultRepository) Append(ctx context.Context, rows []model.ResultRow) error {
	return appendResults(r.DB.WithContext(ctx), r.SurveyID, rows)
}

func appendResults(tx *gorm.DB, surveyID string, rows []model.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].SurveyID = surveyID
	}
	return tx.CreateInBatches(rows, 200).Error
}

func (r *ResultRepository) List(ctx context.Context) ([]model.ResultRow, error) {
	var rows []model.ResultRow
	err := r.DB.WithContext(ctx).
		Where("survey_id = ?", r.SurveyID).
		Order("id asc").
		Find(&rows).Error
	return rows, err
}

func (r *ResultRepository) Clear(ctx context.Context) error {
	return r.DB.WithContext(ctx).
		Unscoped().
		Where("survey_id = ?", r.SurveyID).
		Delete(&model.ResultRow{}).Error
}
