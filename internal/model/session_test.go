package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLoggedPageMatchesWorklist(t *testing.T) {
	s := NewSession("test")
	s.User = "A"
	b := Page{Project: "P", Reviewee: "B"}
	c := Page{Project: "P", Reviewee: "C"}

	s.RecordPage(PageAnswers{PageIndex: 0, Page: b, Answers: []Answer{{Submitter: "A", Project: "P", Reviewee: "B", Subitem: "一", Score: 3}}})
	s.RecordPage(PageAnswers{PageIndex: 0, Page: b, Answers: []Answer{{Submitter: "A", Project: "P", Reviewee: "B", Subitem: "一", Score: 4}}})
	require.Len(t, s.AnswerLog, 1)

	answers, ok := s.LoggedPage(0, b)
	require.True(t, ok)
	assert.Equal(t, 4, answers[0].Score)

	// 页码相同但页已换人
	_, ok = s.LoggedPage(0, c)
	assert.False(t, ok)
	_, ok = s.LoggedPage(1, b)
	assert.False(t, ok)

	// 快照属于其他填答者
	s.User = "E"
	_, ok = s.LoggedPage(0, b)
	assert.False(t, ok)
}

func TestSessionReset(t *testing.T) {
	s := NewSession("test")
	s.User = "A"
	s.State = StateAnswering
	s.PageIndex = 2
	s.Scores["k"] = 5
	s.Missing = []string{"一"}
	s.RecordPage(PageAnswers{PageIndex: 0, Page: Page{Project: "P", Reviewee: "B"}})

	s.Reset()
	assert.Equal(t, StateUnidentified, s.State)
	assert.Empty(t, s.User)
	assert.Zero(t, s.PageIndex)
	assert.Empty(t, s.Scores)
	assert.NotNil(t, s.Scores)
	assert.Nil(t, s.AnswerLog)
	assert.Nil(t, s.Missing)
}
