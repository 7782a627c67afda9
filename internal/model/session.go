package model

import "time"

type SessionState string

const (
	StateUnidentified SessionState = "unidentified"
	StateAnswering    SessionState = "answering"
	StateSubmitted    SessionState = "submitted"
)

// PageAnswers 翻过某一页时该页作答的快照
type PageAnswers struct {
	PageIndex int      `json:"pageIndex"`
	Page      Page     `json:"page"`
	Answers   []Answer `json:"answers"`
}

// Session 单个填答者的问卷会话，所有字段零值即初始状态
type Session struct {
	ID        string         `json:"id"`
	SurveyID  string         `json:"surveyId"`
	User      string         `json:"user"`
	State     SessionState   `json:"state"`
	PageIndex int            `json:"pageIndex"`
	Scores    map[string]int `json:"scores"`
	AnswerLog []PageAnswers  `json:"answerLog"`
	Missing   []string       `json:"missing"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func NewSession(surveyID string) *Session {
	now := time.Now()
	return &Session{
		ID:        GenerateUUID(),
		SurveyID:  surveyID,
		State:     StateUnidentified,
		Scores:    make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordPage 记录某页快照；同一页再次翻过时覆盖旧快照
func (s *Session) RecordPage(entry PageAnswers) {
	for i := range s.AnswerLog {
		if s.AnswerLog[i].PageIndex == entry.PageIndex {
			s.AnswerLog[i] = entry
			return
		}
	}
	s.AnswerLog = append(s.AnswerLog, entry)
}

// Reset 回到未选身分，丢弃上一位填答者的全部作答
func (s *Session) Reset() {
	s.State = StateUnidentified
	s.User = ""
	s.PageIndex = 0
	s.Scores = make(map[string]int)
	s.AnswerLog = nil
	s.Missing = nil
}

// LoggedPage 返回第 index 页的快照；名单变动后快照对应的页已不同时视为没有记录
func (s *Session) LoggedPage(index int, page Page) ([]Answer, bool) {
	for _, e := range s.AnswerLog {
		if e.PageIndex != index || e.Page != page {
			continue
		}
		for _, a := range e.Answers {
			if a.Submitter != s.User || a.Project != page.Project || a.Reviewee != page.Reviewee {
				return nil, false
			}
		}
		return e.Answers, true
	}
	return nil, false
}
