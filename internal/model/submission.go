package model

import "time"

// RegistryHeader 已提交名单的列
var RegistryHeader = []string{"填答者"}

// SubmissionRecord 已提交名单中的一条记录
type SubmissionRecord struct {
	BaseModel
	SurveyID    string    `gorm:"size:64;uniqueIndex:idx_survey_submitter" json:"surveyId"`
	Submitter   string    `gorm:"size:128;uniqueIndex:idx_survey_submitter" json:"submitter"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (SubmissionRecord) TableName() string {
	return "submission_records"
}
