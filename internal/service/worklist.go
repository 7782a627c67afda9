package service

import (
	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/util"
)

// Navigator 填答者的页面序列与当前页
type Navigator struct {
	pages []model.Page
	index int
}

// NewNavigator 索引越界（例如名单已变更）时归零
func NewNavigator(pages []model.Page, index int) *Navigator {
	if index < 0 || index >= len(pages) {
		index = 0
	}
	return &Navigator{pages: pages, index: index}
}

func (n *Navigator) CurrentPage() (model.Page, bool) {
	if len(n.pages) == 0 {
		return model.Page{}, false
	}
	return n.pages[n.index], true
}

func (n *Navigator) PageIndex() int {
	return n.index
}

func (n *Navigator) TotalPages() int {
	return len(n.pages)
}

func (n *Navigator) IsLastPage() bool {
	return len(n.pages) > 0 && n.index == len(n.pages)-1
}

// Advance 当前页全部作答后前进一页
func (n *Navigator) Advance(store *AnswerStore) error {
	page, ok := n.CurrentPage()
	if !ok {
		return util.ErrNoPages
	}
	if n.IsLastPage() {
		return util.ErrLastPage
	}
	if missing := store.Missing(page); len(missing) > 0 {
		return &util.IncompleteError{Page: page, Missing: missing}
	}
	n.index++
	return nil
}

// Retreat 后退一页，不做校验
func (n *Navigator) Retreat() error {
	if n.index == 0 {
		return util.ErrFirstPage
	}
	n.index--
	return nil
}
