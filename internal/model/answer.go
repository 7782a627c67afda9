package model

import "strings"

const (
	MinScore = 1
	MaxScore = 10
)

const keySep = "\x1f"

// AnswerKey 作答的复合键 (专案, 被评者, 子項目)
type AnswerKey struct {
	Project  string
	Reviewee string
	Subitem  string
}

func (k AnswerKey) String() string {
	return k.Project + keySep + k.Reviewee + keySep + k.Subitem
}

func ParseAnswerKey(s string) (AnswerKey, bool) {
	parts := strings.Split(s, keySep)
	if len(parts) != 3 {
		return AnswerKey{}, false
	}
	return AnswerKey{Project: parts[0], Reviewee: parts[1], Subitem: parts[2]}, true
}

// Answer 已确认的一条作答
type Answer struct {
	Submitter string `json:"submitter"`
	Project   string `json:"project"`
	Reviewee  string `json:"reviewee"`
	Category  string `json:"category"`
	Subitem   string `json:"subitem"`
	Score     int    `json:"score"`
}

type ScoreLabel struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// ScoreLabels 1~10 分的固定说明，由低到高
var ScoreLabels = []ScoreLabel{
	{1, "完全不符合該項目內容，無相關經驗"},
	{2, "對該項目內容有基本概念，但無法獨立操作"},
	{3, "能夠在指導下完成簡單任務"},
	{4, "能夠獨立完成基礎工作，但可能需參考資料或請教他人"},
	{5, "具備基本執行能力，能處理一般狀況，並能遵循流程"},
	{6, "能熟練應用並處理複雜問題，能適時優化方法"},
	{7, "能主動解決問題並提出改進建議"},
	{8, "具備高水準，能協助他人並提供有效指導"},
	{9, "能設計並推動最佳實踐，產生明顯正向影響"},
	{10, "能主導改進與創新，並影響團隊決策"},
}
