package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	BackendCSV      = "csv"
	BackendDatabase = "database"
	BackendSheets   = "sheets"
)

const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeCSV  = "text/csv"
)

var (
	AllowedTableExtensions = []string{".xlsx", ".csv"}
)
