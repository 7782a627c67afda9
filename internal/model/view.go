package model

// QuestionView 页面中的一道题及当前分数
type QuestionView struct {
	Number      int    `json:"number"`
	Subitem     string `json:"subitem"`
	Description string `json:"description"`
	Score       *int   `json:"score,omitempty"`
}

type CategoryView struct {
	Name      string         `json:"name"`
	Questions []QuestionView `json:"questions"`
}

// PageView 当前页面的视图模型
type PageView struct {
	SessionID      string         `json:"sessionId"`
	Title          string         `json:"title"`
	State          SessionState   `json:"state"`
	User           string         `json:"user,omitempty"`
	Project        string         `json:"project,omitempty"`
	Reviewee       string         `json:"reviewee,omitempty"`
	PageIndex      int            `json:"pageIndex"`
	TotalPages     int            `json:"totalPages"`
	IsLastPage     bool           `json:"isLastPage"`
	Categories     []CategoryView `json:"categories,omitempty"`
	Answered       int            `json:"answered"`
	TotalQuestions int            `json:"totalQuestions"`
	Progress       float64        `json:"progress"`
	Missing        []string       `json:"missing,omitempty"`
	ScoreLabels    []ScoreLabel   `json:"scoreLabels,omitempty"`
	Reviewers      []string       `json:"reviewers,omitempty"`
	Message        string         `json:"message,omitempty"`
}
