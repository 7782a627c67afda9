package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

const testRubricCSV = "大項目,子項目,說明\n" +
	"溝通協作,表達,能清楚表達想法\n" +
	",傾聽,能理解他人意見\n" +
	"專業能力,設計,能規劃技術方案\n" +
	",實作,能完成開發任務\n"

// A 在 ProjA 评 B 与 C；D 在两个专案评 A
const testRosterCSV = "填答者,被評者,ProjA,ProjB\n" +
	"A,B,v,\n" +
	"A,C,v,\n" +
	"D,A,v,v\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testSurveyConfig(t *testing.T) *config.SurveyConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.SurveyConfig{
		ID:           "test",
		Title:        "測試問卷",
		RubricPath:   filepath.Join(dir, "rubric.csv"),
		RosterPath:   filepath.Join(dir, "roster.csv"),
		ResultsPath:  filepath.Join(dir, "results.csv"),
		RegistryPath: filepath.Join(dir, "submitted_users.csv"),
	}
	writeFile(t, cfg.RubricPath, testRubricCSV)
	writeFile(t, cfg.RosterPath, testRosterCSV)
	return cfg
}

type surveyFixture struct {
	cfg      *config.SurveyConfig
	roster   *RosterService
	results  *repository.CSVResultRepository
	registry *repository.CSVSubmissionRepository
	svc      *SurveyService
	redis    *miniredis.Miniredis
}

func newSurveyFixture(t *testing.T) *surveyFixture {
	t.Helper()
	cfg := testSurveyConfig(t)

	roster := NewRosterService(cfg)
	require.NoError(t, roster.Reload())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	results := repository.NewCSVResultRepository(cfg.ResultsPath)
	registry := repository.NewCSVSubmissionRepository(cfg.RegistryPath)
	svc := NewSurveyService(
		cfg,
		roster,
		repository.NewSessionRepository(rdb, cfg.ID, time.Hour),
		registry,
		repository.NewSplitWriter(results, registry),
		repository.NewFinalizeLock(rdb, cfg.ID, time.Second),
	)
	svc.now = func() time.Time { return time.Date(2025, 3, 31, 9, 30, 0, 0, time.Local) }

	return &surveyFixture{
		cfg:      cfg,
		roster:   roster,
		results:  results,
		registry: registry,
		svc:      svc,
		redis:    mr,
	}
}
