package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/isdelr/ender-world-manager/internal/metrics"
	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/isdelr/ender-world-manager/internal/rcon"
	"github.com/rs/zerolog/log"
)

const (
	archiveExt        = ".tar.gz"
	archiveTimeLayout = "2006-01-02_15-04-05"
	maxNameCollisions = 1000
)

var archiveNamePattern = regexp.MustCompile(`^(.+)_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}(?:-\d+)?\.(?:tar\.gz|tgz|zip)$`)

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(ctx context.Context, worldName string) (models.BackupResult, error)
	ListBackups() ([]models.BackupArchive, error)
	PruneBackups(worldName string, keep int) ([]string, error)
	BackupPath(filename string) (string, error)
}

// BackupOptions configures a BackupService.
type BackupOptions struct {
	DataRoot    string
	BackupDir   string
	SettleDelay time.Duration // Pause between save-all and save-off
	Timeout     time.Duration // Budget for writing the archive
}

// BackupService quiesces a world over the remote console, archives it and
// resumes saving.
type BackupService struct {
	opts         BackupOptions
	console      rcon.Executor
	archiver     Archiver
	locks        *WorldLocker
	eventService EventServiceProvider
	now          func() time.Time
}

// NewBackupService creates a new BackupService.
func NewBackupService(opts BackupOptions, console rcon.Executor, archiver Archiver, locks *WorldLocker, eventService EventServiceProvider) *BackupService {
	if err := os.MkdirAll(opts.BackupDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", opts.BackupDir).Msg("Failed to create backup directory")
	}
	return &BackupService{
		opts:         opts,
		console:      console,
		archiver:     archiver,
		locks:        locks,
		eventService: eventService,
		now:          time.Now,
	}
}

// CreateBackup archives a world. save-on is always sent once a quiesce has
// been attempted, whatever happens to the archive.
func (s *BackupService) CreateBackup(ctx context.Context, worldName string) (models.BackupResult, error) {
	start := s.now()
	result, err := s.createBackup(ctx, worldName)
	metrics.Backups.WithLabelValues(metrics.Result(err)).Inc()

	if err != nil {
		log.Error().Err(err).Str("world", worldName).Msg("Backup failed")
		if !IsKind(err, KindNotFound) && !IsKind(err, KindConflict) {
			s.eventService.CreateEvent("backup.failed", "error", fmt.Sprintf("Backup of world '%s' failed: %s", worldName, UserMessage(err)), &worldName)
		}
		return models.BackupResult{}, err
	}

	metrics.BackupDuration.Observe(time.Since(start).Seconds())
	log.Info().Str("world", worldName).Str("file", result.Filename).Int64("size", result.SizeBytes).Msg("Backup created")
	s.eventService.CreateEvent("backup.create", "info", fmt.Sprintf("Backup '%s' created for world '%s' (%.2f MB).", result.Filename, worldName, result.SizeMB), &worldName)
	return result, nil
}

func (s *BackupService) createBackup(ctx context.Context, worldName string) (models.BackupResult, error) {
	worldDir := filepath.Join(s.opts.DataRoot, worldName)
	if !isValidWorldName(worldName) {
		return models.BackupResult{}, newError(KindNotFound, nil, "World '%s' not found", worldName)
	}
	if info, err := os.Stat(worldDir); err != nil || !info.IsDir() {
		return models.BackupResult{}, newError(KindNotFound, err, "World '%s' not found", worldName)
	}

	if !s.locks.TryLock(worldName) {
		return models.BackupResult{}, newError(KindConflict, nil, "A backup of world '%s' is already in progress", worldName)
	}
	defer s.locks.Unlock(worldName)

	// Once started, only the archive timeout can fail the backup.
	ctx = context.WithoutCancel(ctx)

	defer s.resume(worldName)
	s.quiesce(ctx, worldName)

	file, filename, err := s.createArchiveFile(worldName)
	if err != nil {
		return models.BackupResult{}, newError(KindIO, err, "Failed to create archive file")
	}
	archivePath := file.Name()

	actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	err = s.archiver.Archive(actx, worldDir, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(archivePath)
		if errors.Is(err, context.DeadlineExceeded) {
			return models.BackupResult{}, newError(KindIO, err, "Backup timed out after %s", s.opts.Timeout)
		}
		return models.BackupResult{}, newError(KindIO, err, "Failed to archive world")
	}

	fi, err := os.Stat(archivePath)
	if err != nil {
		return models.BackupResult{}, newError(KindIO, err, "Could not get backup file info")
	}
	return models.BackupResult{
		Filename:  filename,
		SizeBytes: fi.Size(),
		SizeMB:    models.BytesToMB(fi.Size()),
	}, nil
}

// quiesce flushes pending chunks, waits for the flush to settle and turns
// autosave off. An unreachable server is not writing, so connection failures
// are logged and the backup goes ahead.
func (s *BackupService) quiesce(ctx context.Context, worldName string) {
	if _, err := s.console.Execute(ctx, "save-all flush"); err != nil {
		log.Warn().Err(err).Str("world", worldName).Msg("save-all failed, archiving without flush")
	}

	if s.opts.SettleDelay > 0 {
		time.Sleep(s.opts.SettleDelay)
	}

	if _, err := s.console.Execute(ctx, "save-off"); err != nil {
		log.Warn().Err(err).Str("world", worldName).Msg("save-off failed, archiving with autosave on")
	}
}

// resume re-enables autosave after every backup attempt.
func (s *BackupService) resume(worldName string) {
	if _, err := s.console.Execute(context.Background(), "save-on"); err != nil {
		log.Error().Err(err).Str("world", worldName).Msg("save-on failed, autosave may still be disabled")
		return
	}
	log.Debug().Str("world", worldName).Msg("Autosave resumed")
}

// createArchiveFile reserves a new archive name in the backup directory.
func (s *BackupService) createArchiveFile(worldName string) (*os.File, string, error) {
	if err := os.MkdirAll(s.opts.BackupDir, 0755); err != nil {
		return nil, "", err
	}
	base := fmt.Sprintf("%s_%s", worldName, s.now().Format(archiveTimeLayout))
	for i := 0; i < maxNameCollisions; i++ {
		filename := base + archiveExt
		if i > 0 {
			filename = fmt.Sprintf("%s-%d%s", base, i, archiveExt)
		}
		f, err := os.OpenFile(filepath.Join(s.opts.BackupDir, filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, filename, nil
	}
	return nil, "", fmt.Errorf("no free archive name for %s", base)
}

// ListBackups returns the archives in the backup directory, newest first.
func (s *BackupService) ListBackups() ([]models.BackupArchive, error) {
	entries, err := os.ReadDir(s.opts.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.BackupArchive{}, nil
		}
		return nil, newError(KindIO, err, "Failed to read backup directory")
	}

	backups := []models.BackupArchive{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isArchiveName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, models.BackupArchive{
			Filename:  entry.Name(),
			World:     archiveWorld(entry.Name()),
			SizeBytes: info.Size(),
			SizeMB:    models.BytesToMB(info.Size()),
			CreatedAt: info.ModTime(),
			Path:      filepath.Join(s.opts.BackupDir, entry.Name()),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Filename > backups[j].Filename
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// PruneBackups deletes all but the keep newest archives of a world and
// returns the deleted filenames.
func (s *BackupService) PruneBackups(worldName string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, newError(KindValidation, nil, "Retention must keep at least one archive")
	}
	backups, err := s.ListBackups()
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	kept := 0
	for _, b := range backups {
		if b.World != worldName {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, newError(KindIO, err, "Failed to delete archive '%s'", b.Filename)
		}
		deleted = append(deleted, b.Filename)
	}

	if len(deleted) > 0 {
		log.Info().Str("world", worldName).Strs("deleted", deleted).Msg("Pruned old backups")
		s.eventService.CreateEvent("backup.prune", "info", fmt.Sprintf("Pruned %d old backup(s) of world '%s'.", len(deleted), worldName), &worldName)
	}
	return deleted, nil
}

// BackupPath resolves an archive filename to its path in the backup directory.
func (s *BackupService) BackupPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) || filename == ".." || filename == "." {
		return "", newError(KindValidation, nil, "Invalid backup filename")
	}
	p := filepath.Join(s.opts.BackupDir, filename)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", newError(KindNotFound, err, "Backup '%s' not found", filename)
	}
	return p, nil
}

func isArchiveName(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".zip")
}

// archiveWorld extracts the world name from a timestamped archive filename.
func archiveWorld(filename string) string {
	m := archiveNamePattern.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return m[1]
}
