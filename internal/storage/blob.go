package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	"go.uber.org/zap"

	rcloneLocal "github.com/rclone/rclone/backend/local"
	rcloneS3 "github.com/rclone/rclone/backend/s3"
	rcloneFs "github.com/rclone/rclone/fs"
	rcloneConfigmap "github.com/rclone/rclone/fs/config/configmap"
	rcloneOperations "github.com/rclone/rclone/fs/operations"
)

var (
	ErrStoreConfig     = errors.New("object store configuration invalid")
	ErrInitS3Fs        = errors.New("error initializing s3 fs")
	ErrInitLocalFs     = errors.New("error initializing local fs")
	ErrUpload          = errors.New("error uploading object")
	ErrLinkUnsupported = errors.New("backend cannot generate links and no public base url is configured")
)

// BlobStore 固件对象存储
type BlobStore interface {
	// Put 写入对象并返回可下载的链接
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Link 为已存在的对象重新生成链接
	Link(ctx context.Context, key string) (string, error)
}

// RcloneStore 基于 rclone 文件系统的对象存储
// S3 后端返回有时效的预签名链接，其他后端拼接 PublicBaseURL
type RcloneStore struct {
	fs            rcloneFs.Fs
	publicBaseURL string
	linkExpiry    time.Duration
	logger        *zap.Logger
}

// NewRcloneStore 按配置创建对象存储
func NewRcloneStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*RcloneStore, error) {
	var (
		f   rcloneFs.Fs
		err error
	)

	switch cfg.Backend {
	case "s3":
		f, err = initS3Fs(ctx, cfg)
	case "local":
		f, err = initLocalFs(ctx, cfg.LocalRoot)
	default:
		err = fmt.Errorf("%w: unsupported backend %q", ErrStoreConfig, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("object store initialized",
		zap.String("backend", cfg.Backend),
		zap.String("root", f.Root()),
		zap.Duration("link_expiry", cfg.LinkExpiry))

	return &RcloneStore{
		fs:            f,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		linkExpiry:    cfg.LinkExpiry,
		logger:        logger,
	}, nil
}

// SetRcloneLogging 让 rclone 的日志级别跟随服务日志级别
func SetRcloneLogging(ctx context.Context, level string) {
	switch level {
	case "debug":
		rcloneFs.GetConfig(ctx).LogLevel = rcloneFs.LogLevelDebug
	case "error":
		rcloneFs.GetConfig(ctx).LogLevel = rcloneFs.LogLevelError
	}
}

// Put 写入对象并返回可下载的链接
func (s *RcloneStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	in := io.NopCloser(bytes.NewReader(data))

	obj, err := rcloneOperations.Rcat(ctx, s.fs, key, in, time.Now(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUpload, key, err)
	}

	s.logger.Debug("object written",
		zap.String("key", obj.Remote()),
		zap.Int64("size", obj.Size()))

	return s.Link(ctx, key)
}

// Link 为已存在的对象重新生成链接
func (s *RcloneStore) Link(ctx context.Context, key string) (string, error) {
	if s.fs.Features().PublicLink != nil {
		link, err := rcloneOperations.PublicLink(ctx, s.fs, key, rcloneFs.Duration(s.linkExpiry), false)
		if err == nil {
			return link, nil
		}
		if s.publicBaseURL == "" {
			return "", fmt.Errorf("public link for %s: %w", key, err)
		}
		s.logger.Warn("public link failed, falling back to base url",
			zap.String("key", key),
			zap.Error(err))
	}

	if s.publicBaseURL == "" {
		return "", ErrLinkUnsupported
	}

	return JoinURL(s.publicBaseURL, key)
}

// JoinURL 拼接基础地址与对象键
func JoinURL(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: public base url: %v", ErrStoreConfig, err)
	}

	u.Path = path.Join("/", u.Path, key)

	return u.String(), nil
}

// initS3Fs 初始化 S3 兼容存储，桶作为根目录挂载
func initS3Fs(ctx context.Context, cfg *config.StorageConfig) (rcloneFs.Fs, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket not defined", ErrInitS3Fs)
	}

	// https://github.com/rclone/rclone/blob/master/backend/s3/s3.go
	opts := rcloneConfigmap.Simple{
		"type":             "s3",
		"provider":         cfg.Provider,
		"region":           cfg.Region,
		"endpoint":         cfg.Endpoint,
		"disable_http2":    "true",
		"chunk_size":       "10M",
		"upload_cutoff":    "10M",
		"disable_checksum": "false",
		"force_path_style": "true",
		"no_check_bucket":  "true",
		"no_head":          "true",
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts["access_key_id"] = cfg.AccessKey
		opts["secret_access_key"] = cfg.SecretKey
	} else {
		opts["env_auth"] = "true"
	}

	f, err := rcloneS3.NewFs(ctx, "s3", cfg.Bucket, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitS3Fs, err)
	}

	return f, nil
}

// initLocalFs 初始化本地文件系统存储
func initLocalFs(ctx context.Context, root string) (rcloneFs.Fs, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local root not defined", ErrInitLocalFs)
	}

	// https://github.com/rclone/rclone/blob/master/backend/local/local.go
	opts := rcloneConfigmap.Simple{
		"type":             "local",
		"copy_links":       "true",
		"one_file_system":  "true",
		"case_sensitive":   "true",
		"no_preallocation": "true",
	}

	f, err := rcloneLocal.NewFs(ctx, "local", root, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitLocalFs, err)
	}

	return f, nil
}
