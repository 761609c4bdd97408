package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
	wait   bool
	ctxErr error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	r.ctxErr = ctx.Err()
	if r.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.output, r.err
}

const rcloneConf = `[other]
type = s3

[gdrive]
type = drive
scope = drive.file
`

type syncFixture struct {
	backupDir string
	confPath  string
	runner    *fakeRunner
	svc       *SyncService
}

func newSyncFixture(t *testing.T, conf string) *syncFixture {
	t.Helper()
	dir := t.TempDir()
	confPath := filepath.Join(dir, "rclone.conf")
	if conf != "" {
		require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o600))
	}
	backupDir := filepath.Join(dir, "backups")
	backups := NewBackupService(BackupOptions{DataRoot: dir, BackupDir: backupDir}, newFakeConsole(), NewTarGzArchiver(), NewWorldLocker(), NewEventService(nil))

	runner := &fakeRunner{}
	backend := NewRcloneBackend("rclone", confPath, "gdrive", "minecraft-backups", runner)
	return &syncFixture{
		backupDir: backupDir,
		confPath:  confPath,
		runner:    runner,
		svc:       NewSyncService(backend, backups, NewEventService(nil), time.Minute),
	}
}

func TestRcloneBackend_Status(t *testing.T) {
	tests := []struct {
		name       string
		conf       string
		configured bool
		message    string
	}{
		{"no config file", "", false, "rclone config not found"},
		{"remote missing", "[other]\ntype = s3\n", false, "Remote 'gdrive' not configured in rclone config"},
		{"remote present", rcloneConf, true, "Remote 'gdrive' configured"},
		{"unclosed section", "[gdrive\ntype = drive\n", false, "rclone config is not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newSyncFixture(t, tt.conf)
			status := fx.svc.Status()
			assert.Equal(t, tt.configured, status.Configured)
			assert.Equal(t, tt.message, status.Message)
			assert.Empty(t, fx.runner.calls)
		})
	}
}

func TestSyncService_Upload(t *testing.T) {
	fx := newSyncFixture(t, rcloneConf)
	writeArchive(t, fx.backupDir, "world_2024-01-01_00-00-00.tar.gz", time.Now())

	msg, err := fx.svc.Upload(context.Background(), "world_2024-01-01_00-00-00.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "Uploaded world_2024-01-01_00-00-00.tar.gz to gdrive:minecraft-backups", msg)
	require.Len(t, fx.runner.calls, 1)
	assert.Equal(t, []string{
		"rclone", "copy",
		filepath.Join(fx.backupDir, "world_2024-01-01_00-00-00.tar.gz"),
		"gdrive:minecraft-backups",
		"--config", fx.confPath,
	}, fx.runner.calls[0])
}

func TestSyncService_Upload_Failures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		fx := newSyncFixture(t, "")
		writeArchive(t, fx.backupDir, "a_2024-01-01_00-00-00.tar.gz", time.Now())

		_, err := fx.svc.Upload(context.Background(), "a_2024-01-01_00-00-00.tar.gz")
		require.Error(t, err)
		assert.Contains(t, UserMessage(err), "rclone config not found")
		assert.Empty(t, fx.runner.calls)
	})

	t.Run("missing archive", func(t *testing.T) {
		fx := newSyncFixture(t, rcloneConf)

		_, err := fx.svc.Upload(context.Background(), "missing.tar.gz")
		assert.True(t, IsKind(err, KindNotFound))
		assert.Empty(t, fx.runner.calls)
	})

	t.Run("tool fails", func(t *testing.T) {
		fx := newSyncFixture(t, rcloneConf)
		writeArchive(t, fx.backupDir, "a_2024-01-01_00-00-00.tar.gz", time.Now())
		fx.runner.err = errors.New("exit status 1")
		fx.runner.output = []byte("Failed to copy: quota exceeded\n")

		_, err := fx.svc.Upload(context.Background(), "a_2024-01-01_00-00-00.tar.gz")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindIO))
		assert.Contains(t, UserMessage(err), "quota exceeded")
	})

	t.Run("timeout", func(t *testing.T) {
		fx := newSyncFixture(t, rcloneConf)
		fx.svc.timeout = 10 * time.Millisecond
		writeArchive(t, fx.backupDir, "a_2024-01-01_00-00-00.tar.gz", time.Now())
		fx.runner.wait = true

		_, err := fx.svc.Upload(context.Background(), "a_2024-01-01_00-00-00.tar.gz")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindIO))
		assert.Contains(t, UserMessage(err), "timed out")
	})
}

func TestSyncService_ListRemote(t *testing.T) {
	fx := newSyncFixture(t, rcloneConf)
	fx.runner.output = []byte("world_2024-01-01_00-00-00.tar.gz\nworld_2024-01-02_00-00-00.tar.gz\n\n")

	files, err := fx.svc.ListRemote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"world_2024-01-01_00-00-00.tar.gz", "world_2024-01-02_00-00-00.tar.gz"}, files)
	assert.Equal(t, []string{"rclone", "lsf", "gdrive:minecraft-backups", "--files-only", "--config", fx.confPath}, fx.runner.calls[0])
}

func TestS3Backend_Status(t *testing.T) {
	unconfigured := NewS3Backend("", "", "", "world-backups", "", false)
	assert.False(t, unconfigured.Status().Configured)

	configured := NewS3Backend("minio:9000", "access", "secret", "world-backups", "/servers/main/", false)
	status := configured.Status()
	assert.True(t, status.Configured)
	assert.Equal(t, "Bucket 'world-backups' configured", status.Message)
	assert.Equal(t, "servers/main/a.tar.gz", configured.objectName("a.tar.gz"))
}

func TestSyncService_UploadIgnoresCallerCancel(t *testing.T) {
	fx := newSyncFixture(t, rcloneConf)
	require.NoError(t, os.MkdirAll(fx.backupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fx.backupDir, "world_2024-03-09_14-05-07.tar.gz"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := fx.svc.Upload(ctx, "world_2024-03-09_14-05-07.tar.gz")
	require.NoError(t, err)
	assert.Contains(t, msg, "Uploaded world_2024-03-09_14-05-07.tar.gz")
	assert.NoError(t, fx.runner.ctxErr)
}
