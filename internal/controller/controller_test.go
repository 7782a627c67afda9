package controller

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/middleware"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/YJLINa/peer-review-form/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testRubricCSV = "大項目,子項目,說明\n" +
		"溝通協作,表達,能清楚表達想法\n" +
		",傾聽,能理解他人意見\n"
	testRosterCSV = "填答者,被評者,ProjA\n" +
		"A,B,v\n" +
		"A,C,v\n"
	testPassword  = "s3cret-password"
	testJWTSecret = "test-secret-test-secret-test-secret"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
	roster *service.RosterService
}

func newTestServer(t *testing.T, loadConfig bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Survey: config.SurveyConfig{
			ID:           "test",
			Title:        "測試問卷",
			RubricPath:   filepath.Join(dir, "rubric.csv"),
			RosterPath:   filepath.Join(dir, "roster.csv"),
			ResultsPath:  filepath.Join(dir, "results.csv"),
			RegistryPath: filepath.Join(dir, "submitted_users.csv"),
		},
		Storage: config.StorageConfig{Type: "local", LocalPath: filepath.Join(dir, "archive")},
		Admin: config.AdminConfig{
			PasswordHash: string(hash),
			JWTSecret:    testJWTSecret,
			ExpireTime:   time.Hour,
		},
	}

	roster := service.NewRosterService(&cfg.Survey)
	if loadConfig {
		require.NoError(t, os.WriteFile(cfg.Survey.RubricPath, []byte(testRubricCSV), 0644))
		require.NoError(t, os.WriteFile(cfg.Survey.RosterPath, []byte(testRosterCSV), 0644))
		require.NoError(t, roster.Reload())
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	results := repository.NewCSVResultRepository(cfg.Survey.ResultsPath)
	registry := repository.NewCSVSubmissionRepository(cfg.Survey.RegistryPath)
	surveySvc := service.NewSurveyService(
		&cfg.Survey,
		roster,
		repository.NewSessionRepository(rdb, cfg.Survey.ID, time.Hour),
		registry,
		repository.NewSplitWriter(results, registry),
		repository.NewFinalizeLock(rdb, cfg.Survey.ID, time.Second),
	)

	survey := NewSurveyController(surveySvc)
	archive := service.NewArchiveService(cfg)
	admin := NewAdminController(
		service.NewAuthService(&cfg.Admin),
		service.NewResultsService(results, registry),
		service.NewConfigUploadService(&cfg.Survey, roster, archive),
		archive,
		roster,
		cfg.Survey.ID,
	)
	health := NewHealthController(nil, rdb, roster)

	r := gin.New()
	r.GET("/health", health.HealthCheck)
	s := r.Group("/api/survey")
	s.GET("/reviewers", survey.Reviewers)
	s.POST("/sessions", survey.StartSession)
	s.GET("/sessions/:id", survey.GetSession)
	s.POST("/sessions/:id/identity", survey.Identify)
	s.PUT("/sessions/:id/scores", survey.RecordScore)
	s.POST("/sessions/:id/next", survey.Next)
	s.POST("/sessions/:id/prev", survey.Prev)
	s.POST("/sessions/:id/finalize", survey.Finalize)

	r.POST("/api/admin/login", admin.Login)
	a := r.Group("/api/admin", middleware.AdminAuth(cfg.Admin.JWTSecret))
	a.POST("/config/:kind", admin.UploadConfig)
	a.GET("/archive", admin.DownloadArchive)
	a.POST("/roster/reload", admin.ReloadRoster)
	a.GET("/results", admin.ListResults)
	a.GET("/results/export", admin.ExportResults)
	a.DELETE("/results", admin.ClearResults)
	a.GET("/submissions", admin.ListSubmissions)
	a.GET("/reconcile", admin.Reconcile)

	return &testServer{router: r, cfg: cfg, roster: roster}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}
