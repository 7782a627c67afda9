package model

import (
	"fmt"
	"strconv"
)

// ResultHeader 结果表的列
var ResultHeader = []string{"填答者", "專案", "被評者", "大項目", "子項目", "分數", "填寫時間"}

// ResultRow 结果表中的一行
type ResultRow struct {
	BaseModel
	SurveyID    string `gorm:"size:64;index;comment:问卷实例" json:"surveyId"`
	Submitter   string `gorm:"size:128;index;comment:填答者" json:"submitter"`
	Project     string `gorm:"size:255;comment:專案" json:"project"`
	Reviewee    string `gorm:"size:128;comment:被評者" json:"reviewee"`
	Category    string `gorm:"size:255;comment:大項目" json:"category"`
	Subitem     string `gorm:"size:255;comment:子項目" json:"subitem"`
	Score       int    `gorm:"comment:分數" json:"score"`
	SubmittedAt string `gorm:"size:32;comment:填寫時間" json:"submittedAt"`
}

func (ResultRow) TableName() string {
	return "result_rows"
}

// Record 按 ResultHeader 的列顺序输出
func (r ResultRow) Record() []string {
	return []string{r.Submitter, r.Project, r.Reviewee, r.Category, r.Subitem, strconv.Itoa(r.Score), r.SubmittedAt}
}

func ParseResultRecord(rec []string) (ResultRow, error) {
	if len(rec) < len(ResultHeader) {
		return ResultRow{}, fmt.Errorf("result record has %d columns, want %d", len(rec), len(ResultHeader))
	}
	score, err := strconv.Atoi(rec[5])
	if err != nil {
		return ResultRow{}, fmt.Errorf("invalid score %q: %w", rec[5], err)
	}
	return ResultRow{
		Submitter:   rec[0],
		Project:     rec[1],
		Reviewee:    rec[2],
		Category:    rec[3],
		Subitem:     rec[4],
		Score:       score,
		SubmittedAt: rec[6],
	}, nil
}
