package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"go.uber.org/zap"
)

const (
	ConfigRubric = "rubric"
	ConfigRoster = "roster"
)

// UploadResult 上传设定档的处理结果
type UploadResult struct {
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Archive    string `json:"archive,omitempty"`
	ArchiveKey string `json:"archiveKey,omitempty"`
	Rows       int    `json:"rows"`
	Loaded     bool   `json:"loaded"`
	LoadInfo   string `json:"loadInfo,omitempty"`
}

// ConfigUploadService 校验并替换题目表或名单，然后重新加载
type ConfigUploadService struct {
	cfg     *config.SurveyConfig
	roster  *RosterService
	archive *ArchiveService
}

func NewConfigUploadService(cfg *config.SurveyConfig, roster *RosterService, archive *ArchiveService) *ConfigUploadService {
	return &ConfigUploadService{cfg: cfg, roster: roster, archive: archive}
}

func (s *ConfigUploadService) targetPath(kind string) (string, string, error) {
	switch kind {
	case ConfigRubric:
		return s.cfg.RubricPath, s.cfg.RubricSheet, nil
	case ConfigRoster:
		return s.cfg.RosterPath, s.cfg.RosterSheet, nil
	}
	return "", "", util.ErrUnknownConfigKind
}

func (s *ConfigUploadService) Upload(ctx context.Context, kind, filename string, data []byte) (*UploadResult, error) {
	target, sheet, err := s.targetPath(kind)
	if err != nil {
		return nil, err
	}
	ext, err := util.ValidateTableExtension(filename)
	if err != nil {
		return nil, err
	}
	if ext != strings.ToLower(filepath.Ext(target)) {
		return nil, fmt.Errorf("%w: got %s, want %s", util.ErrConfigExtMismatch, ext, filepath.Ext(target))
	}

	rows, err := ReadTableFrom(bytes.NewReader(data), ext, sheet)
	if err != nil {
		return nil, err
	}
	var count int
	switch kind {
	case ConfigRubric:
		rubric, err := ParseRubric(rows)
		if err != nil {
			return nil, err
		}
		count = rubric.Total()
	case ConfigRoster:
		entries, err := ParseRoster(rows, s.cfg.RosterSwapColumns)
		if err != nil {
			return nil, err
		}
		count = len(entries)
	}

	if err := replaceFile(target, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", target, err)
	}

	result := &UploadResult{Kind: kind, Path: target, Rows: count}
	if s.archive != nil {
		key, location, err := s.archive.Archive(ctx, kind, filename, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			logger.Log.Warn("Failed to archive config upload", zap.String("kind", kind), zap.Error(err))
		} else {
			result.Archive = location
			result.ArchiveKey = key
		}
	}

	// 另一份设定档可能尚未上传，此时不算上传失败
	if err := s.roster.Reload(); err != nil {
		result.LoadInfo = err.Error()
	} else {
		result.Loaded = true
	}

	logger.Log.Info("Config uploaded",
		zap.String("kind", kind),
		zap.String("path", target),
		zap.Int("rows", count),
		zap.Bool("loaded", result.Loaded),
	)
	return result, nil
}

// replaceFile 先写临时文件再改名，读取方不会看到写到一半的文件
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
