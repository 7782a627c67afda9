package service

import (
	"context"
	"errors"
	"testing"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allSubitems = []string{"表達", "傾聽", "設計", "實作"}

func (f *surveyFixture) identify(t *testing.T, name string) *model.PageView {
	t.Helper()
	ctx := context.Background()
	view, err := f.svc.StartSession(ctx)
	require.NoError(t, err)
	require.Equal(t, model.StateUnidentified, view.State)

	view, err = f.svc.Identify(ctx, view.SessionID, name)
	require.NoError(t, err)
	return view
}

func (f *surveyFixture) answerPage(t *testing.T, view *model.PageView, score int, subitems ...string) *model.PageView {
	t.Helper()
	var err error
	for _, sub := range subitems {
		view, err = f.svc.RecordScore(context.Background(), view.SessionID, view.Project, view.Reviewee, sub, score)
		require.NoError(t, err)
	}
	return view
}

func TestSurveyExampleFourQuestions(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	view := f.identify(t, "A")
	assert.Equal(t, model.StateAnswering, view.State)
	assert.Equal(t, 2, view.TotalPages)
	assert.Equal(t, "ProjA", view.Project)
	assert.Equal(t, "B", view.Reviewee)
	assert.Equal(t, 4, view.TotalQuestions)
	require.Len(t, view.Categories, 2)
	assert.Len(t, view.ScoreLabels, 10)

	view = f.answerPage(t, view, 8, "表達", "傾聽", "設計")
	assert.Equal(t, 3, view.Answered)

	rejected, err := f.svc.Next(ctx, view.SessionID)
	require.Error(t, err)
	var incomplete *util.IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Len(t, incomplete.Missing, 1)
	require.NotNil(t, rejected)
	assert.Equal(t, []string{"實作"}, rejected.Missing)
	assert.Equal(t, 0, rejected.PageIndex)

	// 补填后提示消失
	view = f.answerPage(t, rejected, 8, "實作")
	assert.Empty(t, view.Missing)

	view, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.PageIndex)
	assert.Equal(t, "C", view.Reviewee)
	assert.True(t, view.IsLastPage)
	assert.Equal(t, 0, view.Answered)
}

func TestSurveyBackAndForwardPreservesScores(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	view := f.identify(t, "A")
	view = f.answerPage(t, view, 4, allSubitems...)
	view, err := f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	view = f.answerPage(t, view, 9, "表達")

	view, err = f.svc.Prev(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.PageIndex)
	for _, c := range view.Categories {
		for _, q := range c.Questions {
			require.NotNil(t, q.Score, q.Subitem)
			assert.Equal(t, 4, *q.Score)
		}
	}

	view, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.PageIndex)
	assert.Equal(t, 1, view.Answered)
	require.NotNil(t, view.Categories[0].Questions[0].Score)
	assert.Equal(t, 9, *view.Categories[0].Questions[0].Score)

	_, err = f.svc.Prev(ctx, view.SessionID)
	require.NoError(t, err)
	_, err = f.svc.Prev(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrFirstPage)
}

func TestSurveyFinalizeWritesResultsAndRegistry(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	view := f.identify(t, "A")
	_, err := f.svc.Finalize(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrNotLastPage)

	view = f.answerPage(t, view, 5, allSubitems...)
	view, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)

	// 回到第一页改分，再前进，作答记录以最后一次为准
	view, err = f.svc.Prev(ctx, view.SessionID)
	require.NoError(t, err)
	view = f.answerPage(t, view, 6, "表達")
	view, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)

	view = f.answerPage(t, view, 7, "表達", "傾聽")
	_, err = f.svc.Finalize(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrPageIncomplete)

	view = f.answerPage(t, view, 7, "設計", "實作")
	view, err = f.svc.Finalize(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSubmitted, view.State)
	assert.Equal(t, msgThankYou, view.Message)
	assert.Empty(t, view.Categories)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	for _, row := range rows {
		assert.Equal(t, "A", row.Submitter)
		assert.Equal(t, "2025-03-31 09:30:00", row.SubmittedAt)
	}
	assert.Equal(t, "B", rows[0].Reviewee)
	assert.Equal(t, 6, rows[0].Score)
	assert.Equal(t, "C", rows[7].Reviewee)
	assert.Equal(t, "實作", rows[7].Subitem)

	ok, err := f.registry.Contains(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)

	// 已提交的会话不能再修改
	_, err = f.svc.RecordScore(ctx, view.SessionID, "ProjA", "C", "表達", 1)
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
}

func TestSurveyPreventsSecondSubmission(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	first := f.identify(t, "A")
	second := f.identify(t, "A")

	for _, id := range []string{first.SessionID, second.SessionID} {
		view, err := f.svc.View(ctx, id)
		require.NoError(t, err)
		view = f.answerPage(t, view, 3, allSubitems...)
		view, err = f.svc.Next(ctx, id)
		require.NoError(t, err)
		f.answerPage(t, view, 3, allSubitems...)
	}

	_, err := f.svc.Finalize(ctx, first.SessionID)
	require.NoError(t, err)

	view, err := f.svc.Finalize(ctx, second.SessionID)
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
	require.NotNil(t, view)
	assert.Equal(t, model.StateSubmitted, view.State)

	// 新会话选择同一身分直接进入感谢页
	third := f.identify(t, "A")
	assert.Equal(t, model.StateSubmitted, third.State)
	assert.Empty(t, third.Categories)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}

func TestSurveyIdentityChecks(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	view, err := f.svc.StartSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, view.Reviewers)

	_, err = f.svc.Next(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrNotIdentified)

	_, err = f.svc.Identify(ctx, view.SessionID, "B")
	assert.ErrorIs(t, err, util.ErrUnknownReviewer)

	_, err = f.svc.Identify(ctx, view.SessionID, "D")
	require.NoError(t, err)
	_, err = f.svc.Identify(ctx, view.SessionID, "A")
	assert.ErrorIs(t, err, util.ErrAlreadyIdentified)

	_, err = f.svc.View(ctx, "no-such-session")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestSurveyRecordScoreChecksPage(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	view := f.identify(t, "A")

	_, err := f.svc.RecordScore(ctx, view.SessionID, "ProjA", "C", "表達", 5)
	assert.ErrorIs(t, err, util.ErrNotCurrentPage)

	_, err = f.svc.RecordScore(ctx, view.SessionID, "ProjA", "B", "表達", 12)
	assert.ErrorIs(t, err, util.ErrInvalidScore)
}

func TestSurveyConfigurationMissing(t *testing.T) {
	f := newSurveyFixture(t)
	f.svc.roster = NewRosterService(f.cfg)

	_, err := f.svc.StartSession(context.Background())
	assert.ErrorIs(t, err, util.ErrConfigurationMissing)
}

func TestSurveyReviewerRemovedFromRoster(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	view := f.identify(t, "A")
	view = f.answerPage(t, view, 4, allSubitems...)
	view, err := f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	f.answerPage(t, view, 4, "表達")

	writeFile(t, f.cfg.RosterPath, "填答者,被評者,ProjA\nD,A,v\nE,X,v\n")
	require.NoError(t, f.roster.Reload())

	view, err = f.svc.View(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StateUnidentified, view.State)
	assert.Equal(t, []string{"D", "E"}, view.Reviewers)

	// 上一位填答者的作答全部丢弃
	sess, err := f.svc.sessions.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.User)
	assert.Empty(t, sess.Scores)
	assert.Empty(t, sess.AnswerLog)

	view, err = f.svc.Identify(ctx, view.SessionID, "E")
	require.NoError(t, err)
	assert.True(t, view.IsLastPage)
	view = f.answerPage(t, view, 9, allSubitems...)
	_, err = f.svc.Finalize(ctx, view.SessionID)
	require.NoError(t, err)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, "E", row.Submitter)
		assert.Equal(t, "X", row.Reviewee)
	}
}

func TestSurveyWorklistShrinkSubmitsCurrentPagesOnly(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	writeFile(t, f.cfg.RosterPath, "填答者,被評者,ProjA\nA,B,v\nA,C,v\nA,E,v\nD,A,v\n")
	require.NoError(t, f.roster.Reload())

	view := f.identify(t, "A")
	require.Equal(t, 3, view.TotalPages)
	for i := 0; i < 2; i++ {
		view = f.answerPage(t, view, 5, allSubitems...)
		var err error
		view, err = f.svc.Next(ctx, view.SessionID)
		require.NoError(t, err)
	}
	assert.Equal(t, "E", view.Reviewee)

	writeFile(t, f.cfg.RosterPath, "填答者,被評者,ProjA\nA,X,v\nD,A,v\n")
	require.NoError(t, f.roster.Reload())

	view, err := f.svc.View(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.PageIndex)
	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, "X", view.Reviewee)

	view = f.answerPage(t, view, 8, allSubitems...)
	_, err = f.svc.Finalize(ctx, view.SessionID)
	require.NoError(t, err)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, "A", row.Submitter)
		assert.Equal(t, "X", row.Reviewee)
		assert.Equal(t, 8, row.Score)
	}
}

func TestSurveyWorklistChangeRequiresNewPages(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	view := f.identify(t, "A")
	view = f.answerPage(t, view, 5, allSubitems...)
	view, err := f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, "C", view.Reviewee)

	// B 换成 X，当前页 C 的页码不变
	writeFile(t, f.cfg.RosterPath, "填答者,被評者,ProjA\nA,X,v\nA,C,v\nD,A,v\n")
	require.NoError(t, f.roster.Reload())

	view, err = f.svc.View(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.PageIndex)
	view = f.answerPage(t, view, 6, allSubitems...)

	rejected, err := f.svc.Finalize(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrPageIncomplete)
	require.NotNil(t, rejected)
	assert.Equal(t, 0, rejected.PageIndex)
	assert.Equal(t, "X", rejected.Reviewee)
	assert.Len(t, rejected.Missing, 4)

	view = f.answerPage(t, rejected, 7, allSubitems...)
	view, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Answered)
	_, err = f.svc.Finalize(ctx, view.SessionID)
	require.NoError(t, err)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	byReviewee := map[string]int{}
	for _, row := range rows {
		byReviewee[row.Reviewee]++
	}
	assert.Equal(t, map[string]int{"X": 4, "C": 4}, byReviewee)
	assert.Equal(t, "X", rows[0].Reviewee)
	assert.Equal(t, 7, rows[0].Score)
}

type failingWriter struct {
	fail bool
	next repository.SubmissionWriter
}

func (w *failingWriter) WriteSubmission(ctx context.Context, submitter string, rows []model.ResultRow) error {
	if w.fail {
		return errors.New("disk full")
	}
	return w.next.WriteSubmission(ctx, submitter, rows)
}

func TestSurveyPersistFailureAllowsRetry(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	writer := &failingWriter{fail: true, next: f.svc.writer}
	f.svc.writer = writer

	view := f.identify(t, "A")
	view = f.answerPage(t, view, 5, allSubitems...)
	view, err := f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	view = f.answerPage(t, view, 5, allSubitems...)

	failed, err := f.svc.Finalize(ctx, view.SessionID)
	assert.ErrorIs(t, err, util.ErrPersistFailed)
	require.NotNil(t, failed)
	assert.Equal(t, model.StateAnswering, failed.State)
	assert.True(t, failed.IsLastPage)

	writer.fail = false
	done, err := f.svc.Finalize(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSubmitted, done.State)

	rows, err := f.results.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}

func TestBuildResultRowsSharesTimestamp(t *testing.T) {
	f := newSurveyFixture(t)
	answers := []model.Answer{
		{Submitter: "A", Project: "P", Reviewee: "B", Category: "甲", Subitem: "一", Score: 1},
		{Submitter: "A", Project: "P", Reviewee: "B", Category: "甲", Subitem: "二", Score: 10},
	}
	rows := BuildResultRows(answers, f.svc.now())
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].SubmittedAt, rows[1].SubmittedAt)
	assert.Equal(t, []string{"A", "P", "B", "甲", "二", "10", "2025-03-31 09:30:00"}, rows[1].Record())
}
