package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Survey    SurveyConfig
	Sheets    SheetsConfig
	Storage   StorageConfig
	Admin     AdminConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	MigrateOnly bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	// mysql 或 sqlite
	Driver    string `mapstructure:"driver"`
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	// sqlite 文件路径
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SurveyConfig 问卷实例配置
type SurveyConfig struct {
	// 问卷实例标识，例如 2025Q1_RD6
	ID                string        `mapstructure:"id"`
	Title             string        `mapstructure:"title"`
	RubricPath        string        `mapstructure:"rubric_path"`
	RosterPath        string        `mapstructure:"roster_path"`
	RubricSheet       string        `mapstructure:"rubric_sheet"`
	RosterSheet       string        `mapstructure:"roster_sheet"`
	RosterSwapColumns bool          `mapstructure:"roster_swap_columns"`
	WatchFiles        bool          `mapstructure:"watch_files"`
	ResultsBackend    string        `mapstructure:"results_backend"`
	RegistryBackend   string        `mapstructure:"registry_backend"`
	ResultsPath       string        `mapstructure:"results_path"`
	RegistryPath      string        `mapstructure:"registry_path"`
	SessionTTL        time.Duration `mapstructure:"session_ttl_hours"`
	LockTTL           time.Duration `mapstructure:"lock_ttl_seconds"`
}

// SheetsConfig Google 试算表结果存储
type SheetsConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Tab             string `mapstructure:"tab"`
	Endpoint        string `mapstructure:"endpoint"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type AdminConfig struct {
	// bcrypt 哈希
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	ExpireTime   time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/peer_review.db")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("survey.id", "default")
	v.SetDefault("survey.title", "部門互評問卷")
	v.SetDefault("survey.rubric_path", "data/評分項目.xlsx")
	v.SetDefault("survey.roster_path", "data/互評名單.xlsx")
	v.SetDefault("survey.watch_files", true)
	v.SetDefault("survey.results_backend", "csv")
	v.SetDefault("survey.registry_backend", "csv")
	v.SetDefault("survey.results_path", "data/results.csv")
	v.SetDefault("survey.registry_path", "data/submitted_users.csv")
	v.SetDefault("survey.session_ttl_hours", 12)
	v.SetDefault("survey.lock_ttl_seconds", 30)
	v.SetDefault("sheets.tab", "results")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("admin.expire_hours", 8)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PEER_REVIEW")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Survey
	v.BindEnv("survey.id", "SURVEY_ID")
	v.BindEnv("survey.results_backend", "SURVEY_RESULTS_BACKEND")

	// Google Sheets
	v.BindEnv("sheets.credentials_file", "SHEETS_CREDENTIALS_FILE")
	v.BindEnv("sheets.spreadsheet_id", "SHEETS_SPREADSHEET_ID")

	// Admin
	v.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	v.BindEnv("admin.jwt_secret", "ADMIN_JWT_SECRET")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Admin.ExpireTime = cfg.Admin.ExpireTime * time.Hour
	cfg.Survey.SessionTTL = cfg.Survey.SessionTTL * time.Hour
	cfg.Survey.LockTTL = cfg.Survey.LockTTL * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}
	for _, p := range []string{cfg.Survey.ResultsPath, cfg.Survey.RegistryPath} {
		if dir := filepath.Dir(p); dir != "" {
			os.MkdirAll(dir, 0755)
		}
	}

	return &cfg, nil
}

// Validate 校验各后端所需的配置项
func (c *Config) Validate() error {
	switch c.Survey.ResultsBackend {
	case "csv", "database":
	case "sheets":
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required when results_backend is sheets")
		}
		if c.Sheets.CredentialsFile == "" && c.Sheets.Endpoint == "" {
			return fmt.Errorf("sheets.credentials_file is required when results_backend is sheets")
		}
	default:
		return fmt.Errorf("unknown survey.results_backend %q", c.Survey.ResultsBackend)
	}

	switch c.Survey.RegistryBackend {
	case "csv", "database":
	default:
		return fmt.Errorf("unknown survey.registry_backend %q", c.Survey.RegistryBackend)
	}

	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.Admin.JWTSecret))
	}
	return nil
}
