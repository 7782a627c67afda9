package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/YJLINa/peer-review-form/internal/model"
)

var (
	ErrConfigurationMissing = errors.New("請先由管理者上傳評分項目與互評名單設定檔")
	ErrRubricOrphanQuestion = errors.New("rubric question has no category above it")
	ErrRubricColumns        = errors.New("rubric is missing required columns 大項目/子項目/說明")
	ErrRubricEmpty          = errors.New("rubric has no questions")
	ErrRubricDuplicate      = errors.New("rubric subitem appears more than once")
	ErrRosterColumns        = errors.New("roster needs reviewer, reviewee and at least one project column")
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnknownReviewer      = errors.New("reviewer not in roster")
	ErrNotIdentified        = errors.New("identity not selected")
	ErrAlreadyIdentified    = errors.New("identity already selected")
	ErrAlreadySubmitted     = errors.New("survey already submitted")
	ErrInvalidScore         = errors.New("score must be between 1 and 10")
	ErrUnknownQuestion      = errors.New("unknown rubric subitem")
	ErrNotCurrentPage       = errors.New("answer does not belong to the current page")
	ErrPageIncomplete       = errors.New("請填完所有題目才能進行下一頁")
	ErrFirstPage            = errors.New("already on the first page")
	ErrLastPage             = errors.New("already on the last page")
	ErrNotLastPage          = errors.New("finalize is only allowed on the last page")
	ErrNoPages              = errors.New("reviewer has no assigned pages")
	ErrPersistFailed        = errors.New("failed to save survey results")
	ErrLockBusy             = errors.New("another submission is in progress")
	ErrInvalidCredentials   = errors.New("invalid admin credentials")
	ErrUnknownConfigKind    = errors.New("config kind must be rubric or roster")
	ErrConfigExtMismatch    = errors.New("uploaded file type does not match the configured path")
	ErrInvalidFileType      = errors.New("invalid file type")
	ErrInvalidTable         = errors.New("unreadable table file")
	ErrInvalidArchiveKey    = errors.New("invalid archive key")
	ErrArchiveNotFound      = errors.New("archived file not found")
)

// IncompleteError 列出当前页尚未作答的题目
type IncompleteError struct {
	Page    model.Page
	Missing []model.Question
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, q := range e.Missing {
		names[i] = q.Subitem
	}
	return fmt.Sprintf("%s: %s", ErrPageIncomplete.Error(), strings.Join(names, ", "))
}

func (e *IncompleteError) Unwrap() error {
	return ErrPageIncomplete
}
