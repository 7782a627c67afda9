package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateTableExtension 校验上传的设定档扩展名，返回小写扩展名
func ValidateTableExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedTableExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return ext, fmt.Errorf("%w: %s", ErrInvalidFileType, ext)
}

// ContentTypeForExt 根据扩展名返回存储时使用的 MIME 类型
func ContentTypeForExt(ext string) string {
	switch ext {
	case ".xlsx":
		return MimeXLSX
	case ".csv":
		return MimeCSV
	}
	return "application/octet-stream"
}
