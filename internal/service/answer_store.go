package service

import (
	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/util"
)

// AnswerStore 会话内的作答，键为 (专案, 被評者, 子項目)
type AnswerStore struct {
	rubric *model.Rubric
	scores map[string]int
}

// NewAnswerStore 直接使用传入的 scores，修改会反映到会话上
func NewAnswerStore(rubric *model.Rubric, scores map[string]int) *AnswerStore {
	if scores == nil {
		scores = make(map[string]int)
	}
	return &AnswerStore{rubric: rubric, scores: scores}
}

func (s *AnswerStore) Scores() map[string]int {
	return s.scores
}

// RecordScore 记录或覆盖一题的分数
func (s *AnswerStore) RecordScore(project, reviewee, subitem string, score int) error {
	if score < model.MinScore || score > model.MaxScore {
		return util.ErrInvalidScore
	}
	if _, ok := s.rubric.Find(subitem); !ok {
		return util.ErrUnknownQuestion
	}
	s.scores[model.AnswerKey{Project: project, Reviewee: reviewee, Subitem: subitem}.String()] = score
	return nil
}

func (s *AnswerStore) Score(page model.Page, subitem string) (int, bool) {
	v, ok := s.scores[model.AnswerKey{Project: page.Project, Reviewee: page.Reviewee, Subitem: subitem}.String()]
	return v, ok
}

// Missing 当前页尚未作答的题目，按展示顺序
func (s *AnswerStore) Missing(page model.Page) []model.Question {
	var missing []model.Question
	for _, q := range s.rubric.All() {
		if _, ok := s.Score(page, q.Subitem); !ok {
			missing = append(missing, q)
		}
	}
	return missing
}

func (s *AnswerStore) IsComplete(page model.Page) bool {
	return len(s.Missing(page)) == 0
}

func (s *AnswerStore) Answered(page model.Page) int {
	return s.TotalQuestions() - len(s.Missing(page))
}

func (s *AnswerStore) TotalQuestions() int {
	return s.rubric.Total()
}

// Progress 当前页完成比例
func (s *AnswerStore) Progress(page model.Page) float64 {
	total := s.TotalQuestions()
	if total == 0 {
		return 0
	}
	return float64(s.Answered(page)) / float64(total)
}

// PageAnswers 当前页全部作答，供写入作答记录
func (s *AnswerStore) PageAnswers(user string, page model.Page) []model.Answer {
	var out []model.Answer
	for _, c := range s.rubric.Categories {
		for _, q := range c.Questions {
			score, ok := s.Score(page, q.Subitem)
			if !ok {
				continue
			}
			out = append(out, model.Answer{
				Submitter: user,
				Project:   page.Project,
				Reviewee:  page.Reviewee,
				Category:  c.Name,
				Subitem:   q.Subitem,
				Score:     score,
			})
		}
	}
	return out
}
