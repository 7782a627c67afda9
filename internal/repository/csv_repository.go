package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/YJLINa/peer-review-form/internal/model"
)

// 同一进程内对同一文件的写入串行化
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	mu, _ := fileLocks.LoadOrStore(abs, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// csvTable 带表头的 csv 文件，新行以 O_APPEND 追加，不重写已有内容
type csvTable struct {
	path   string
	header []string
}

func (t *csvTable) append(records [][]string) error {
	mu := lockFor(t.path)
	mu.Lock()
	defer mu.Unlock()

	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(t.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if info.Size() == 0 {
		records = append([][]string{t.header}, records...)
	} else {
		// 手动编辑过的文件可能缺少结尾换行
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}

	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	return f.Sync()
}

// readAll 返回表头之后的全部行；文件不存在视为空表
func (t *csvTable) readAll() ([][]string, error) {
	mu := lockFor(t.path)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.path, err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// truncate 清空数据，只保留表头
func (t *csvTable) truncate() error {
	mu := lockFor(t.path)
	mu.Lock()
	defer mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(t.path, buf.Bytes(), 0644)
}

// CSVResultRepository 本地 csv 结果表
type CSVResultRepository struct {
	table *csvTable
}

func NewCSVResultRepository(path string) *CSVResultRepository {
	return &CSVResultRepository{table: &csvTable{path: path, header: model.ResultHeader}}
}

func (r *CSVResultRepository) Append(ctx context.Context, rows []model.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return r.table.append(records)
}

func (r *CSVResultRepository) List(ctx context.Context) ([]model.ResultRow, error) {
	records, err := r.table.readAll()
	if err != nil {
		return nil, err
	}
	rows := make([]model.ResultRow, 0, len(records))
	for i, rec := range records {
		row, err := model.ParseResultRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", r.table.path, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *CSVResultRepository) Clear(ctx context.Context) error {
	return r.table.truncate()
}

// CSVSubmissionRepository 本地 csv 已提交名单，单列 填答者
type CSVSubmissionRepository struct {
	table *csvTable
}

func NewCSVSubmissionRepository(path string) *CSVSubmissionRepository {
	return &CSVSubmissionRepository{table: &csvTable{path: path, header: model.RegistryHeader}}
}

func (r *CSVSubmissionRepository) Contains(ctx context.Context, submitter string) (bool, error) {
	records, err := r.table.readAll()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if len(rec) > 0 && rec[0] == submitter {
			return true, nil
		}
	}
	return false, nil
}

func (r *CSVSubmissionRepository) Add(ctx context.Context, submitter string) error {
	return r.table.append([][]string{{submitter}})
}

func (r *CSVSubmissionRepository) List(ctx context.Context) ([]model.SubmissionRecord, error) {
	records, err := r.table.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]model.SubmissionRecord, 0, len(records))
	for _, rec := range records {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		out = append(out, model.SubmissionRecord{Submitter: rec[0]})
	}
	return out, nil
}
