package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/configwatcher"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/YJLINa/peer-review-form/pkg/monitoring"
	"go.uber.org/zap"
)

const (
	colCategory    = "大項目"
	colSubitem     = "子項目"
	colDescription = "說明"
)

// ParseRubric 解析评分项目表。大項目为空的行沿用上方最近的大項目。
func ParseRubric(rows [][]string) (*model.Rubric, error) {
	if len(rows) == 0 {
		return nil, util.ErrRubricColumns
	}

	catIdx, subIdx, descIdx := -1, -1, -1
	for i := range rows[0] {
		switch cell(rows[0], i) {
		case colCategory:
			catIdx = i
		case colSubitem:
			subIdx = i
		case colDescription:
			descIdx = i
		}
	}
	if catIdx < 0 || subIdx < 0 || descIdx < 0 {
		return nil, util.ErrRubricColumns
	}

	rubric := &model.Rubric{}
	current := ""
	// 作答以子項目为键，同名子項目会互相覆盖
	seen := make(map[string]bool)
	for n, row := range rows[1:] {
		if c := cell(row, catIdx); c != "" {
			current = c
		}
		subitem := cell(row, subIdx)
		if subitem == "" {
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("row %d (%s): %w", n+2, subitem, util.ErrRubricOrphanQuestion)
		}
		if seen[subitem] {
			return nil, fmt.Errorf("row %d (%s): %w", n+2, subitem, util.ErrRubricDuplicate)
		}
		seen[subitem] = true
		rubric.Add(model.Question{
			Category:    current,
			Subitem:     subitem,
			Description: cell(row, descIdx),
		})
	}

	if rubric.Total() == 0 {
		return nil, util.ErrRubricEmpty
	}
	return rubric, nil
}

// ParseRoster 解析互评名单。第 0 列为填答者、第 1 列为被評者，其后每列一个专案，
// 单元格非空即表示指派。swap 为 true 时交换前两列的含义。
func ParseRoster(rows [][]string, swap bool) ([]model.RosterEntry, error) {
	if len(rows) == 0 || len(rows[0]) < 3 {
		return nil, util.ErrRosterColumns
	}

	reviewerIdx, revieweeIdx := 0, 1
	if swap {
		reviewerIdx, revieweeIdx = 1, 0
	}

	header := rows[0]
	var entries []model.RosterEntry
	for _, row := range rows[1:] {
		reviewer := cell(row, reviewerIdx)
		reviewee := cell(row, revieweeIdx)
		if reviewer == "" || reviewee == "" {
			continue
		}
		for col := 2; col < len(header); col++ {
			project := cell(header, col)
			if project == "" {
				continue
			}
			if cell(row, col) == "" {
				continue
			}
			entries = append(entries, model.RosterEntry{
				Reviewer: reviewer,
				Reviewee: reviewee,
				Project:  project,
			})
		}
	}
	return entries, nil
}

func BuildReviewMap(entries []model.RosterEntry) *model.ReviewMap {
	m := model.NewReviewMap()
	for _, e := range entries {
		m.Add(e)
	}
	return m
}

// LoadRoster 读取并解析两份设定档
func LoadRoster(cfg *config.SurveyConfig) (*model.Roster, error) {
	rubricRows, err := ReadTable(cfg.RubricPath, cfg.RubricSheet)
	if err != nil {
		return nil, err
	}
	rosterRows, err := ReadTable(cfg.RosterPath, cfg.RosterSheet)
	if err != nil {
		return nil, err
	}

	rubric, err := ParseRubric(rubricRows)
	if err != nil {
		return nil, fmt.Errorf("parse rubric %s: %w", cfg.RubricPath, err)
	}
	entries, err := ParseRoster(rosterRows, cfg.RosterSwapColumns)
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", cfg.RosterPath, err)
	}

	return &model.Roster{
		Rubric:   rubric,
		Entries:  entries,
		Reviews:  BuildReviewMap(entries),
		LoadedAt: time.Now(),
	}, nil
}

// RosterService 持有当前生效的题目与名单
type RosterService struct {
	cfg *config.SurveyConfig

	mu      sync.RWMutex
	roster  *model.Roster
	lastErr error
}

func NewRosterService(cfg *config.SurveyConfig) *RosterService {
	return &RosterService{cfg: cfg}
}

// Reload 重新读取设定档；失败时保留已加载的名单
func (s *RosterService) Reload() error {
	roster, err := LoadRoster(s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		monitoring.RosterReloads.WithLabelValues("failed").Inc()
		return err
	}
	s.roster = roster
	monitoring.RosterReloads.WithLabelValues("ok").Inc()

	logger.Log.Info("Roster loaded",
		zap.Int("questions", roster.Rubric.Total()),
		zap.Int("reviewers", len(roster.Reviews.Reviewers())),
		zap.Int("assignments", len(roster.Entries)),
	)
	return nil
}

// Current 返回当前名单；从未成功加载时返回 ErrConfigurationMissing
func (s *RosterService) Current() (*model.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roster == nil {
		if s.lastErr != nil && !errors.Is(s.lastErr, util.ErrConfigurationMissing) {
			return nil, fmt.Errorf("%w: %v", util.ErrConfigurationMissing, s.lastErr)
		}
		return nil, util.ErrConfigurationMissing
	}
	return s.roster, nil
}

func (s *RosterService) Reviewers() ([]string, error) {
	roster, err := s.Current()
	if err != nil {
		return nil, err
	}
	return roster.Reviews.Reviewers(), nil
}

// Watch 设定档变化时自动重新加载
func (s *RosterService) Watch(ctx context.Context) error {
	return configwatcher.WatchFiles(ctx, []string{s.cfg.RubricPath, s.cfg.RosterPath}, time.Second, func() {
		if err := s.Reload(); err != nil {
			logger.Log.Error("Failed to reload roster", zap.Error(err))
		}
	})
}
