package service

import (
	"context"
	"io"
	"sort"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	resultsSheet     = "結果"
	submissionsSheet = "已提交"
)

// ReconcileReport 结果表与已提交名单的差异
type ReconcileReport struct {
	// 名单中有但结果表没有任何行
	RegisteredWithoutResults []string `json:"registeredWithoutResults"`
	// 结果表中有但名单中没有
	ResultsWithoutRegistry []string `json:"resultsWithoutRegistry"`
	ResultRows             int      `json:"resultRows"`
	Submitters             int      `json:"submitters"`
}

func (r *ReconcileReport) Consistent() bool {
	return len(r.RegisteredWithoutResults) == 0 && len(r.ResultsWithoutRegistry) == 0
}

type ResultsService struct {
	results  repository.ResultStore
	registry repository.SubmissionRegistry
}

func NewResultsService(results repository.ResultStore, registry repository.SubmissionRegistry) *ResultsService {
	return &ResultsService{results: results, registry: registry}
}

func (s *ResultsService) List(ctx context.Context) ([]model.ResultRow, error) {
	return s.results.List(ctx)
}

func (s *ResultsService) Submissions(ctx context.Context) ([]model.SubmissionRecord, error) {
	return s.registry.List(ctx)
}

// Clear 只清空结果表，已提交名单保留
func (s *ResultsService) Clear(ctx context.Context) error {
	if err := s.results.Clear(ctx); err != nil {
		return err
	}
	logger.Log.Warn("Results cleared by admin")
	return nil
}

func (s *ResultsService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	rows, err := s.results.List(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	withResults := make(map[string]bool)
	for _, row := range rows {
		withResults[row.Submitter] = true
	}
	registered := make(map[string]bool)
	for _, rec := range records {
		registered[rec.Submitter] = true
	}

	report := &ReconcileReport{
		RegisteredWithoutResults: []string{},
		ResultsWithoutRegistry:   []string{},
		ResultRows:               len(rows),
		Submitters:               len(registered),
	}
	for name := range registered {
		if !withResults[name] {
			report.RegisteredWithoutResults = append(report.RegisteredWithoutResults, name)
		}
	}
	for name := range withResults {
		if !registered[name] {
			report.ResultsWithoutRegistry = append(report.ResultsWithoutRegistry, name)
		}
	}
	sort.Strings(report.RegisteredWithoutResults)
	sort.Strings(report.ResultsWithoutRegistry)

	if !report.Consistent() {
		logger.Log.Warn("Results and registry are out of sync",
			zap.Strings("registeredWithoutResults", report.RegisteredWithoutResults),
			zap.Strings("resultsWithoutRegistry", report.ResultsWithoutRegistry),
		)
	}
	return report, nil
}

// Export 导出结果与已提交名单为 xlsx 工作簿
func (s *ResultsService) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.results.List(ctx)
	if err != nil {
		return err
	}
	records, err := s.registry.List(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &model.ResultHeader); err != nil {
		return err
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			row.Submitter, row.Project, row.Reviewee, row.Category, row.Subitem, row.Score, row.SubmittedAt,
		}
		if err := f.SetSheetRow(resultsSheet, cellRef, &values); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(submissionsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(submissionsSheet, "A1", &model.RegistryHeader); err != nil {
		return err
	}
	for i, rec := range records {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(submissionsSheet, cellRef, rec.Submitter); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
