package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/model"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsResultRepository 以 Google 试算表中的一个工作表作为结果表
type SheetsResultRepository struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string

	mu    sync.Mutex
	ready bool
}

func NewSheetsResultRepository(ctx context.Context, cfg *config.SheetsConfig) (*SheetsResultRepository, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	tab := cfg.Tab
	if tab == "" {
		tab = "results"
	}
	return &SheetsResultRepository{svc: svc, spreadsheetID: cfg.SpreadsheetID, tab: tab}, nil
}

func (r *SheetsResultRepository) rangeOf(cells string) string {
	return fmt.Sprintf("'%s'!%s", r.tab, cells)
}

// ensureTab 工作表不存在时新建
func (r *SheetsResultRepository) ensureTab(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}

	ss, err := r.svc.Spreadsheets.Get(r.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == r.tab {
			r.ready = true
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: r.tab,
					GridProperties: &sheets.GridProperties{
						RowCount:    1000,
						ColumnCount: 20,
					},
				},
			},
		}},
	}
	if _, err := r.svc.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", r.tab, err)
	}
	r.ready = true
	return nil
}

func (r *SheetsResultRepository) values(ctx context.Context) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.rangeOf("A:G")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	return resp.Values, nil
}

// Append 以 INSERT_ROWS 方式追加，空表时先写表头
func (r *SheetsResultRepository) Append(ctx context.Context, rows []model.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.ensureTab(ctx); err != nil {
		return err
	}

	existing, err := r.values(ctx)
	if err != nil {
		return err
	}

	var values [][]interface{}
	if len(existing) == 0 {
		values = append(values, toInterfaces(model.ResultHeader))
	}
	for _, row := range rows {
		values = append(values, []interface{}{
			row.Submitter, row.Project, row.Reviewee, row.Category, row.Subitem, row.Score, row.SubmittedAt,
		})
	}

	_, err = r.svc.Spreadsheets.Values.Append(r.spreadsheetID, r.rangeOf("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append values: %w", err)
	}
	return nil
}

func (r *SheetsResultRepository) List(ctx context.Context) ([]model.ResultRow, error) {
	if err := r.ensureTab(ctx); err != nil {
		return nil, err
	}
	values, err := r.values(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) <= 1 {
		return []model.ResultRow{}, nil
	}

	rows := make([]model.ResultRow, 0, len(values)-1)
	for i, v := range values[1:] {
		rec := make([]string, len(v))
		for j, c := range v {
			rec[j] = fmt.Sprint(c)
		}
		row, err := model.ParseResultRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("sheet row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Clear 清空整个工作表，包括表头
func (r *SheetsResultRepository) Clear(ctx context.Context) error {
	if err := r.ensureTab(ctx); err != nil {
		return err
	}
	_, err := r.svc.Spreadsheets.Values.Clear(r.spreadsheetID, r.rangeOf("A:Z"), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear values: %w", err)
	}
	return nil
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
