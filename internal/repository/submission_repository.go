package repository

import (
	"context"
	"time"

	"github.com/YJLINa/peer-review-form/internal/model"
	"gorm.io/gorm"
)

// SubmissionRegistry 已提交名单
type SubmissionRegistry interface {
	Contains(ctx context.Context, submitter string) (bool, error)
	Add(ctx context.Context, submitter string) error
	List(ctx context.Context) ([]model.SubmissionRecord, error)
}

type SubmissionRepository struct {
	DB       *gorm.DB
	SurveyID string
}

func NewSubmissionRepository(db *gorm.DB, surveyID string) *SubmissionRepository {
	return &SubmissionRepository{DB: db, SurveyID: surveyID}
}

func (r *SubmissionRepository) Contains(ctx context.Context, submitter string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.SubmissionRecord{}).
		Where("survey_id = ? AND submitter = ?", r.SurveyID, submitter).
		Count(&count).Error
	return count > 0, err
}

func (r *SubmissionRepository) Add(ctx context.Context, submitter string) error {
	return addSubmission(r.DB.WithContext(ctx), r.SurveyID, submitter)
}

func addSubmission(tx *gorm.DB, surveyID, submitter string) error {
	return tx.Create(&model.SubmissionRecord{
		SurveyID:    surveyID,
		Submitter:   submitter,
		SubmittedAt: time.Now(),
	}).Error
}

func (r *SubmissionRepository) List(ctx context.Context) ([]model.SubmissionRecord, error) {
	var records []model.SubmissionRecord
	err := r.DB.WithContext(ctx).
		Where("survey_id = ?", r.SurveyID).
		Order("id asc").
		Find(&records).Error
	return records, err
}
