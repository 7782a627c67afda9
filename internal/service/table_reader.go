package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/xuri/excelize/v2"
)

// ReadTable 读取 xlsx 或 csv 设定档的全部行，第一行为表头。
// 文件不存在时返回 util.ErrConfigurationMissing。
func ReadTable(path, sheet string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, util.ErrConfigurationMissing)
		}
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTableFrom(f, filepath.Ext(path), sheet)
}

// ReadTableFrom 按扩展名解析表格内容
func ReadTableFrom(r io.Reader, ext, sheet string) ([][]string, error) {
	switch strings.ToLower(ext) {
	case ".xlsx":
		return readWorkbook(r, sheet)
	case ".csv":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", util.ErrInvalidTable, ext)
	}
}

func readWorkbook(r io.Reader, sheet string) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", util.ErrInvalidTable, err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", util.ErrInvalidTable)
		}
		sheet = sheets[0]
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %v", util.ErrInvalidTable, sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", util.ErrInvalidTable, err)
	}
	return rows, nil
}

// cell 返回去除空白后的单元格内容，越界视为空
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
