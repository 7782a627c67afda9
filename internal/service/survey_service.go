package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/YJLINa/peer-review-form/pkg/monitoring"
	"github.com/YJLINa/peer-review-form/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgChooseIdentity = "請選擇你的名字開始填答"
	msgThankYou       = "✅ 感謝填寫問卷！您的回覆已成功提交，感謝您的協助！"
	msgIncomplete     = "請填完所有題目才能進行下一頁"
	msgIncompleteLast = "還有題目未填寫"
)

type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
}

type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// SurveyService 问卷会话状态机：未选身分 -> 填答中 -> 已提交
type SurveyService struct {
	cfg      *config.SurveyConfig
	roster   *RosterService
	sessions SessionStore
	registry repository.SubmissionRegistry
	writer   repository.SubmissionWriter
	lock     Locker
	now      func() time.Time
}

func NewSurveyService(
	cfg *config.SurveyConfig,
	roster *RosterService,
	sessions SessionStore,
	registry repository.SubmissionRegistry,
	writer repository.SubmissionWriter,
	lock Locker,
) *SurveyService {
	return &SurveyService{
		cfg:      cfg,
		roster:   roster,
		sessions: sessions,
		registry: registry,
		writer:   writer,
		lock:     lock,
		now:      time.Now,
	}
}

func (s *SurveyService) Reviewers(ctx context.Context) ([]string, error) {
	return s.roster.Reviewers()
}

// StartSession 新建一个未选身分的会话
func (s *SurveyService) StartSession(ctx context.Context) (*model.PageView, error) {
	roster, err := s.roster.Current()
	if err != nil {
		return nil, err
	}
	sess := model.NewSession(s.cfg.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.buildView(sess, roster), nil
}

func (s *SurveyService) View(ctx context.Context, id string) (*model.PageView, error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(sess, roster), nil
}

// Identify 选择身分；已在已提交名单中的身分直接进入已提交状态
func (s *SurveyService) Identify(ctx context.Context, id, name string) (*model.PageView, error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case model.StateSubmitted:
		return s.buildView(sess, roster), util.ErrAlreadySubmitted
	case model.StateAnswering:
		return s.buildView(sess, roster), util.ErrAlreadyIdentified
	}

	if !roster.Reviews.Has(name) {
		return s.buildView(sess, roster), util.ErrUnknownReviewer
	}

	submitted, err := s.registry.Contains(ctx, name)
	if err != nil {
		return nil, err
	}

	sess.Reset()
	sess.User = name
	sess.State = model.StateAnswering
	if submitted {
		sess.State = model.StateSubmitted
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	logger.Log.Info("Reviewer identified",
		zap.String("session", sess.ID),
		zap.String("user", name),
		zap.String("state", string(sess.State)),
	)
	return s.buildView(sess, roster), nil
}

// RecordScore 记录当前页某一题的分数
func (s *SurveyService) RecordScore(ctx context.Context, id, project, reviewee, subitem string, score int) (*model.PageView, error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAnswering(sess); err != nil {
		return s.buildView(sess, roster), err
	}

	nav := s.navigator(sess, roster)
	page, ok := nav.CurrentPage()
	if !ok {
		return s.buildView(sess, roster), util.ErrNoPages
	}
	if page.Project != project || page.Reviewee != reviewee {
		return s.buildView(sess, roster), util.ErrNotCurrentPage
	}

	store := NewAnswerStore(roster.Rubric, sess.Scores)
	if err := store.RecordScore(project, reviewee, subitem, score); err != nil {
		return s.buildView(sess, roster), err
	}
	sess.Scores = store.Scores()
	sess.Missing = without(sess.Missing, subitem)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.buildView(sess, roster), nil
}

// Next 当前页全部作答后翻到下一页，并把本页作答写入作答记录
func (s *SurveyService) Next(ctx context.Context, id string) (*model.PageView, error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAnswering(sess); err != nil {
		return s.buildView(sess, roster), err
	}

	nav := s.navigator(sess, roster)
	store := NewAnswerStore(roster.Rubric, sess.Scores)
	page, _ := nav.CurrentPage()
	from := nav.PageIndex()

	if err := nav.Advance(store); err != nil {
		return s.rejectNavigation(ctx, sess, roster, err)
	}

	sess.RecordPage(model.PageAnswers{
		PageIndex: from,
		Page:      page,
		Answers:   store.PageAnswers(sess.User, page),
	})
	sess.PageIndex = nav.PageIndex()
	sess.Missing = nil

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.buildView(sess, roster), nil
}

// Prev 回到上一页，已填的分数保留
func (s *SurveyService) Prev(ctx context.Context, id string) (*model.PageView, error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAnswering(sess); err != nil {
		return s.buildView(sess, roster), err
	}

	nav := s.navigator(sess, roster)
	if err := nav.Retreat(); err != nil {
		return s.buildView(sess, roster), err
	}
	sess.PageIndex = nav.PageIndex()
	sess.Missing = nil

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.buildView(sess, roster), nil
}

// Finalize 在最后一页提交：写入结果表与已提交名单，会话进入已提交状态
func (s *SurveyService) Finalize(ctx context.Context, id string) (view *model.PageView, err error) {
	sess, roster, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAnswering(sess); err != nil {
		return s.buildView(sess, roster), err
	}

	nav := s.navigator(sess, roster)
	page, ok := nav.CurrentPage()
	if !ok {
		return s.buildView(sess, roster), util.ErrNoPages
	}
	if !nav.IsLastPage() {
		return s.buildView(sess, roster), util.ErrNotLastPage
	}
	store := NewAnswerStore(roster.Rubric, sess.Scores)
	if missing := store.Missing(page); len(missing) > 0 {
		return s.rejectNavigation(ctx, sess, roster, &util.IncompleteError{Page: page, Missing: missing})
	}

	sess.RecordPage(model.PageAnswers{
		PageIndex: nav.PageIndex(),
		Page:      page,
		Answers:   store.PageAnswers(sess.User, page),
	})
	answers, at, err := submissionAnswers(sess, roster, store)
	if err != nil {
		// 名单变动后有未填完的页，回到该页
		sess.PageIndex = at
		return s.rejectNavigation(ctx, sess, roster, err)
	}

	ctx, span := tracing.StartSpan(ctx, "survey.finalize",
		attribute.String("survey.id", s.cfg.ID),
		attribute.String("survey.submitter", sess.User),
	)
	defer func() { tracing.EndSpan(span, err) }()

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		monitoring.SubmissionCounter.WithLabelValues("lock_busy").Inc()
		return s.buildView(sess, roster), err
	}
	defer release()

	// 另一个会话可能已用同一身分提交
	submitted, err := s.registry.Contains(ctx, sess.User)
	if err != nil {
		return nil, err
	}
	if submitted {
		sess.State = model.StateSubmitted
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
		monitoring.SubmissionCounter.WithLabelValues("duplicate").Inc()
		return s.buildView(sess, roster), util.ErrAlreadySubmitted
	}

	rows := BuildResultRows(answers, s.now())

	if werr := s.writer.WriteSubmission(ctx, sess.User, rows); werr != nil {
		monitoring.SubmissionCounter.WithLabelValues("failed").Inc()
		logger.Log.Error("Failed to persist submission",
			zap.String("session", sess.ID),
			zap.String("user", sess.User),
			zap.Error(werr),
		)
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
		return s.buildView(sess, roster), fmt.Errorf("%w: %v", util.ErrPersistFailed, werr)
	}

	user := sess.User
	sess.Reset()
	sess.User = user
	sess.State = model.StateSubmitted
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	monitoring.SubmissionCounter.WithLabelValues("submitted").Inc()
	logger.Log.Info("Survey submitted",
		zap.String("session", sess.ID),
		zap.String("user", sess.User),
		zap.Int("rows", len(rows)),
	)
	return s.buildView(sess, roster), nil
}

// BuildResultRows 同一批次的所有行使用同一个填寫時間
func BuildResultRows(answers []model.Answer, at time.Time) []model.ResultRow {
	stamp := at.Format(util.TimeFormat)
	rows := make([]model.ResultRow, len(answers))
	for i, a := range answers {
		rows[i] = model.ResultRow{
			Submitter:   a.Submitter,
			Project:     a.Project,
			Reviewee:    a.Reviewee,
			Category:    a.Category,
			Subitem:     a.Subitem,
			Score:       a.Score,
			SubmittedAt: stamp,
		}
	}
	return rows
}

// submissionAnswers 按当前工作清单逐页收集作答。作答记录里与当前页对不上的快照
// （名单或题目表已变动）不采用，改用会话中的分数；该页未填完时返回其页码。
func submissionAnswers(sess *model.Session, roster *model.Roster, store *AnswerStore) ([]model.Answer, int, error) {
	pages := roster.Reviews.Pages(sess.User)
	var out []model.Answer
	for i, page := range pages {
		if logged, ok := sess.LoggedPage(i, page); ok && coversRubric(roster.Rubric, logged) {
			out = append(out, logged...)
			continue
		}
		if missing := store.Missing(page); len(missing) > 0 {
			return nil, i, &util.IncompleteError{Page: page, Missing: missing}
		}
		out = append(out, store.PageAnswers(sess.User, page)...)
	}
	return out, 0, nil
}

// coversRubric 快照恰好覆盖现行题目表的每一题
func coversRubric(rubric *model.Rubric, answers []model.Answer) bool {
	if len(answers) != rubric.Total() {
		return false
	}
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		q, ok := rubric.Find(a.Subitem)
		if !ok || q.Category != a.Category || seen[a.Subitem] {
			return false
		}
		seen[a.Subitem] = true
	}
	return true
}

// load 读取名单与会话，并同步已提交状态
func (s *SurveyService) load(ctx context.Context, id string) (*model.Session, *model.Roster, error) {
	roster, err := s.roster.Current()
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if sess.State != model.StateAnswering {
		return sess, roster, nil
	}

	submitted, err := s.registry.Contains(ctx, sess.User)
	if err != nil {
		return nil, nil, err
	}
	if submitted {
		sess.State = model.StateSubmitted
		return sess, roster, s.sessions.Save(ctx, sess)
	}

	// 名单重新加载后该身分已不存在
	if !roster.Reviews.Has(sess.User) {
		logger.Log.Warn("Reviewer no longer in roster, resetting session",
			zap.String("session", sess.ID),
			zap.String("user", sess.User),
		)
		sess.Reset()
		return sess, roster, s.sessions.Save(ctx, sess)
	}
	return sess, roster, nil
}

func (s *SurveyService) navigator(sess *model.Session, roster *model.Roster) *Navigator {
	nav := NewNavigator(roster.Reviews.Pages(sess.User), sess.PageIndex)
	sess.PageIndex = nav.PageIndex()
	return nav
}

func (s *SurveyService) rejectNavigation(ctx context.Context, sess *model.Session, roster *model.Roster, err error) (*model.PageView, error) {
	var incomplete *util.IncompleteError
	if !errors.As(err, &incomplete) {
		monitoring.NavigationRejected.WithLabelValues("boundary").Inc()
		return s.buildView(sess, roster), err
	}

	monitoring.NavigationRejected.WithLabelValues("incomplete").Inc()
	sess.Missing = make([]string, len(incomplete.Missing))
	for i, q := range incomplete.Missing {
		sess.Missing[i] = q.Subitem
	}
	if serr := s.sessions.Save(ctx, sess); serr != nil {
		return nil, serr
	}
	return s.buildView(sess, roster), err
}

func (s *SurveyService) buildView(sess *model.Session, roster *model.Roster) *model.PageView {
	view := &model.PageView{
		SessionID: sess.ID,
		Title:     s.cfg.Title,
		State:     sess.State,
		User:      sess.User,
	}

	switch sess.State {
	case model.StateUnidentified:
		view.Reviewers = roster.Reviews.Reviewers()
		view.Message = msgChooseIdentity
		return view
	case model.StateSubmitted:
		view.Message = msgThankYou
		return view
	}

	nav := NewNavigator(roster.Reviews.Pages(sess.User), sess.PageIndex)
	page, ok := nav.CurrentPage()
	if !ok {
		return view
	}
	store := NewAnswerStore(roster.Rubric, sess.Scores)

	view.Project = page.Project
	view.Reviewee = page.Reviewee
	view.PageIndex = nav.PageIndex()
	view.TotalPages = nav.TotalPages()
	view.IsLastPage = nav.IsLastPage()
	view.ScoreLabels = model.ScoreLabels
	view.Missing = sess.Missing
	view.TotalQuestions = store.TotalQuestions()
	view.Answered = store.Answered(page)
	view.Progress = store.Progress(page)

	number := 1
	for _, c := range roster.Rubric.Categories {
		cv := model.CategoryView{Name: c.Name}
		for _, q := range c.Questions {
			qv := model.QuestionView{
				Number:      number,
				Subitem:     q.Subitem,
				Description: q.Description,
			}
			if score, ok := store.Score(page, q.Subitem); ok {
				score := score
				qv.Score = &score
			}
			cv.Questions = append(cv.Questions, qv)
			number++
		}
		view.Categories = append(view.Categories, cv)
	}

	if len(sess.Missing) > 0 {
		view.Message = msgIncomplete
		if view.IsLastPage {
			view.Message = msgIncompleteLast
		}
	}
	return view
}

func checkAnswering(sess *model.Session) error {
	switch sess.State {
	case model.StateUnidentified:
		return util.ErrNotIdentified
	case model.StateSubmitted:
		return util.ErrAlreadySubmitted
	}
	return nil
}

func without(list []string, item string) []string {
	if len(list) == 0 {
		return list
	}
	out := list[:0]
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}
