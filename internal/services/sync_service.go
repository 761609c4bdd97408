package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/isdelr/ender-world-manager/internal/metrics"
	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// SyncServiceProvider defines the interface for remote storage sync.
type SyncServiceProvider interface {
	Status() models.SyncStatus
	Upload(ctx context.Context, filename string) (string, error)
	ListRemote(ctx context.Context) ([]string, error)
}

// SyncBackend pushes archives to one kind of remote storage.
type SyncBackend interface {
	Status() models.SyncStatus
	Upload(ctx context.Context, path, filename string) (string, error)
	List(ctx context.Context) ([]string, error)
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SyncService uploads local archives through the configured backend.
type SyncService struct {
	backend      SyncBackend
	backups      BackupServiceProvider
	eventService EventServiceProvider
	timeout      time.Duration
}

// NewSyncService creates a new SyncService.
func NewSyncService(backend SyncBackend, backups BackupServiceProvider, eventService EventServiceProvider, timeout time.Duration) *SyncService {
	return &SyncService{
		backend:      backend,
		backups:      backups,
		eventService: eventService,
		timeout:      timeout,
	}
}

// Status reports whether remote storage is configured. It makes no network call.
func (s *SyncService) Status() models.SyncStatus {
	return s.backend.Status()
}

// Upload pushes a local archive to remote storage.
func (s *SyncService) Upload(ctx context.Context, filename string) (string, error) {
	msg, err := s.upload(ctx, filename)
	metrics.Uploads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("Upload failed")
		s.eventService.CreateEvent("backup.upload.failed", "error", fmt.Sprintf("Upload of '%s' failed: %s", filename, UserMessage(err)), nil)
		return "", err
	}
	log.Info().Str("file", filename).Msg(msg)
	s.eventService.CreateEvent("backup.upload", "info", msg, nil)
	return msg, nil
}

func (s *SyncService) upload(ctx context.Context, filename string) (string, error) {
	status := s.backend.Status()
	if !status.Configured {
		return "", newError(KindValidation, nil, "Remote storage not configured: %s", status.Message)
	}
	path, err := s.backups.BackupPath(filename)
	if err != nil {
		return "", err
	}

	// A started upload is bounded by the timeout only.
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg, err := s.backend.Upload(ctx, path, filename)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newError(KindIO, err, "Upload timed out after %s", s.timeout)
		}
		return "", newError(KindIO, err, "Upload failed")
	}
	return msg, nil
}

// ListRemote returns the archive names present in remote storage.
func (s *SyncService) ListRemote(ctx context.Context) ([]string, error) {
	status := s.backend.Status()
	if !status.Configured {
		return nil, newError(KindValidation, nil, "Remote storage not configured: %s", status.Message)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	files, err := s.backend.List(ctx)
	if err != nil {
		return nil, newError(KindIO, err, "Failed to list remote storage")
	}
	return files, nil
}

// RcloneBackend shells out to rclone.
type RcloneBackend struct {
	binary     string
	configPath string
	remote     string
	remoteDir  string
	runner     CommandRunner
}

// NewRcloneBackend creates a new RcloneBackend.
func NewRcloneBackend(binary, configPath, remote, remoteDir string, runner CommandRunner) *RcloneBackend {
	return &RcloneBackend{
		binary:     binary,
		configPath: configPath,
		remote:     remote,
		remoteDir:  remoteDir,
		runner:     runner,
	}
}

// Status checks that the config file exists and defines the remote section.
func (b *RcloneBackend) Status() models.SyncStatus {
	data, err := os.ReadFile(b.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", b.configPath).Msg("Could not read rclone config")
		}
		return models.SyncStatus{Configured: false, Message: "rclone config not found"}
	}
	cfg, err := ini.Load(data)
	if err != nil {
		log.Warn().Err(err).Str("path", b.configPath).Msg("Could not parse rclone config")
		return models.SyncStatus{Configured: false, Message: "rclone config is not valid"}
	}
	if !cfg.HasSection(b.remote) {
		return models.SyncStatus{Configured: false, Message: fmt.Sprintf("Remote '%s' not configured in rclone config", b.remote)}
	}
	return models.SyncStatus{Configured: true, Message: fmt.Sprintf("Remote '%s' configured", b.remote)}
}

func (b *RcloneBackend) target() string {
	return b.remote + ":" + b.remoteDir
}

// Upload runs rclone copy for a single archive.
func (b *RcloneBackend) Upload(ctx context.Context, path, filename string) (string, error) {
	out, err := b.runner.Run(ctx, b.binary, "copy", path, b.target(), "--config", b.configPath)
	if err != nil {
		return "", toolError(err, out)
	}
	return fmt.Sprintf("Uploaded %s to %s", filename, b.target()), nil
}

// List runs rclone lsf on the remote directory.
func (b *RcloneBackend) List(ctx context.Context) ([]string, error) {
	out, err := b.runner.Run(ctx, b.binary, "lsf", b.target(), "--files-only", "--config", b.configPath)
	if err != nil {
		return nil, toolError(err, out)
	}
	files := []string{}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// toolError joins a process error with its trimmed output.
func toolError(err error, out []byte) error {
	if diag := strings.TrimSpace(string(out)); diag != "" {
		return fmt.Errorf("%w: %s", err, diag)
	}
	return err
}

// S3Backend stores archives in an S3-compatible bucket.
type S3Backend struct {
	client *minio.Client
	bucket string
	prefix string
	reason string
}

// NewS3Backend creates a new S3Backend. Missing settings leave it unconfigured.
func NewS3Backend(endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) *S3Backend {
	b := &S3Backend{bucket: bucket, prefix: strings.Trim(prefix, "/")}
	if endpoint == "" || bucket == "" || accessKey == "" || secretKey == "" {
		b.reason = "S3 endpoint, bucket and credentials must be set"
		return b
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		b.reason = fmt.Sprintf("Invalid S3 settings: %v", err)
		return b
	}
	b.client = client
	return b
}

// Status implements SyncBackend.
func (b *S3Backend) Status() models.SyncStatus {
	if b.client == nil {
		return models.SyncStatus{Configured: false, Message: b.reason}
	}
	return models.SyncStatus{Configured: true, Message: fmt.Sprintf("Bucket '%s' configured", b.bucket)}
}

func (b *S3Backend) objectName(filename string) string {
	if b.prefix == "" {
		return filename
	}
	return b.prefix + "/" + filename
}

// Upload implements SyncBackend.
func (b *S3Backend) Upload(ctx context.Context, path, filename string) (string, error) {
	if b.client == nil {
		return "", errors.New(b.reason)
	}
	_, err := b.client.FPutObject(ctx, b.bucket, b.objectName(filename), path, minio.PutObjectOptions{ContentType: "application/gzip"})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded %s to s3://%s/%s", filename, b.bucket, b.objectName(filename)), nil
}

// List implements SyncBackend.
func (b *S3Backend) List(ctx context.Context) ([]string, error) {
	if b.client == nil {
		return nil, errors.New(b.reason)
	}
	opts := minio.ListObjectsOptions{Recursive: true}
	if b.prefix != "" {
		opts.Prefix = b.prefix + "/"
	}
	files := []string{}
	for obj := range b.client.ListObjects(ctx, b.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		files = append(files, strings.TrimPrefix(obj.Key, opts.Prefix))
	}
	return files, nil
}
