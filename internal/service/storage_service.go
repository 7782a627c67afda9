package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveProvider 上传设定档的归档位置
type ArchiveProvider interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalArchive 本地目录
type LocalArchive struct {
	Root string
}

func (p *LocalArchive) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *LocalArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(p.Root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, util.ErrArchiveNotFound
	}
	return f, err
}

// MinioArchive MinIO 存储
type MinioArchive struct {
	Bucket string
	Client *minio.Client
}

func NewMinioArchive(cfg *config.StorageConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArchive{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioArchive) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return "/" + p.Bucket + "/" + key, nil
}

func (p *MinioArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := p.Client.GetObject(ctx, p.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject 不会立即请求，先 Stat 确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, util.ErrArchiveNotFound
		}
		return nil, err
	}
	return obj, nil
}

// OSSArchive 阿里云 OSS
type OSSArchive struct {
	Endpoint string
	Bucket   string
	Client   *oss.Client
}

func NewOSSArchive(cfg *config.StorageConfig) (*OSSArchive, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSArchive{Endpoint: cfg.OSSEndpoint, Bucket: cfg.OSSBucket, Client: client}, nil
}

func (p *OSSArchive) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Bucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(key, reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.%s/%s", p.Bucket, p.Endpoint, key), nil
}

func (p *OSSArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, err := p.Client.Bucket(p.Bucket)
	if err != nil {
		return nil, err
	}
	body, err := bucket.GetObject(key)
	var serviceErr oss.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.StatusCode == http.StatusNotFound {
		return nil, util.ErrArchiveNotFound
	}
	return body, err
}

// ArchiveService 按问卷实例归档每次上传的题目表与名单
type ArchiveService struct {
	Provider ArchiveProvider
	surveyID string
	now      func() time.Time
}

func NewArchiveService(cfg *config.Config) *ArchiveService {
	var provider ArchiveProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioArchive(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("MinIO unavailable, archiving locally", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSArchive(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("OSS unavailable, archiving locally", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalArchive{Root: cfg.Storage.LocalPath}
	}
	return &ArchiveService{Provider: provider, surveyID: cfg.Survey.ID, now: time.Now}
}

// Key 形如 <survey>/<kind>/20250101T150405_<filename>
func (s *ArchiveService) Key(kind, filename string) string {
	stamp := s.now().Format("20060102T150405")
	return path.Join(s.surveyID, kind, stamp+"_"+path.Base(filepath.ToSlash(filename)))
}

// Archive 归档一份上传文件，返回对象键与存储位置
func (s *ArchiveService) Archive(ctx context.Context, kind, filename string, reader io.Reader, size int64) (string, string, error) {
	key := s.Key(kind, filename)
	location, err := s.Provider.Put(ctx, key, reader, size, util.ContentTypeForExt(filepath.Ext(filename)))
	if err != nil {
		return "", "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, location, nil
}

// Open 读取本问卷实例下的归档文件，key 必须是 Archive 返回的形式
func (s *ArchiveService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != s.surveyID || path.Clean(key) != key {
		return nil, util.ErrInvalidArchiveKey
	}
	if parts[1] != "rubric" && parts[1] != "roster" {
		return nil, util.ErrInvalidArchiveKey
	}
	if parts[2] == "" || parts[2] == "." || parts[2] == ".." {
		return nil, util.ErrInvalidArchiveKey
	}
	return s.Provider.Open(ctx, key)
}
