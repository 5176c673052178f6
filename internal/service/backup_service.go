package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

const (
	backupTimeLayout   = "20060102_150405"
	manifestFile       = "backup_manifest.json"
	defaultKeepPerKind = 5
	defaultDaysToKeep  = 30
)

// CommandRunner runs an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and fails on a non-zero exit status.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// BackupConfig configures snapshots.
type BackupConfig struct {
	Dir         string
	StorageRoot string
	ManagedDirs []string
	DatabaseURL string
	PgDumpPath  string
	PsqlPath    string
	KeepPerKind int
	DaysToKeep  int
}

// BackupService snapshots and restores the database and the image tree.
type BackupService struct {
	runner  CommandRunner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     BackupConfig
	now     func() time.Time

	mu sync.Mutex
}

// NewBackupService constructs a BackupService. A nil runner uses ExecRunner.
func NewBackupService(runner CommandRunner, metrics *MetricsService, logger *zap.Logger, cfg BackupConfig) *BackupService {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		cfg.Dir = "backups"
	}
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = "."
	}
	if len(cfg.ManagedDirs) == 0 {
		cfg.ManagedDirs = []string{"user_images", "wardrobe", "merged_outfits"}
	}
	if cfg.PgDumpPath == "" {
		cfg.PgDumpPath = "pg_dump"
	}
	if cfg.PsqlPath == "" {
		cfg.PsqlPath = "psql"
	}
	if cfg.KeepPerKind <= 0 {
		cfg.KeepPerKind = defaultKeepPerKind
	}
	if cfg.DaysToKeep <= 0 {
		cfg.DaysToKeep = defaultDaysToKeep
	}
	return &BackupService{runner: runner, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Snapshot runs the backups selected by req. Both run when neither is set.
func (s *BackupService) Snapshot(ctx context.Context, req models.BackupRequest) ([]models.BackupEntry, error) {
	if !req.Database && !req.Files {
		req.Database, req.Files = true, true
	}
	var out []models.BackupEntry
	if req.Database {
		entry, err := s.BackupDatabase(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, *entry)
	}
	if req.Files {
		entry, err := s.BackupFiles(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

// BackupDatabase dumps the database with pg_dump.
func (s *BackupService) BackupDatabase(ctx context.Context) (entry *models.BackupEntry, err error) {
	defer func() { s.metrics.RecordBackup(string(models.BackupDatabase), err == nil) }()

	if s.cfg.DatabaseURL == "" {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "DATABASE_URL is required for database backups")
	}
	now := s.now().UTC()
	target := filepath.Join(s.cfg.Dir, string(models.BackupDatabase), fmt.Sprintf("db_%s.sql", now.Format(backupTimeLayout)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create backup directory")
	}
	if _, err := s.runner.Run(ctx, s.cfg.PgDumpPath, s.cfg.DatabaseURL, "-f", target); err != nil {
		_ = os.Remove(target)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database backup failed")
	}
	return s.record(models.BackupDatabase, target, now)
}

// BackupFiles zips the managed image directories through a staging copy.
func (s *BackupService) BackupFiles(ctx context.Context) (entry *models.BackupEntry, err error) {
	defer func() { s.metrics.RecordBackup(string(models.BackupFiles), err == nil) }()

	now := s.now().UTC()
	staging, err := os.MkdirTemp("", "wardrobe-backup-*")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staging directory")
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	for _, dir := range s.cfg.ManagedDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := storage.CopyTree(filepath.Join(s.cfg.StorageRoot, dir), filepath.Join(staging, dir)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage "+dir)
		}
	}

	target := filepath.Join(s.cfg.Dir, string(models.BackupFiles), fmt.Sprintf("files_%s.zip", now.Format(backupTimeLayout)))
	if err := zipDir(staging, target); err != nil {
		_ = os.Remove(target)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write files backup")
	}
	return s.record(models.BackupFiles, target, now)
}

func (s *BackupService) record(kind models.BackupKind, target string, at time.Time) (*models.BackupEntry, error) {
	sum, err := fileMD5(target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to checksum backup")
	}
	entry := models.BackupEntry{FilePath: target, Timestamp: at, MD5: sum, Kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	manifest, err := s.loadManifest()
	if err != nil {
		return nil, err
	}
	AppendManifest(manifest, entry, s.cfg.KeepPerKind)
	if err := s.saveManifest(manifest); err != nil {
		return nil, err
	}
	s.logger.Info("backup created", zap.String("kind", string(kind)), zap.String("file", target), zap.String("md5", sum))
	return &entry, nil
}

// AppendManifest adds entry to its kind and keeps only the newest keep entries.
func AppendManifest(m models.BackupManifest, entry models.BackupEntry, keep int) {
	entries := append(m[entry.Kind], entry)
	if keep > 0 && len(entries) > keep {
		entries = entries[len(entries)-keep:]
	}
	m[entry.Kind] = entries
}

// Verify recomputes the checksum of path and compares it with the manifest.
func (s *BackupService) Verify(kind models.BackupKind, path string) error {
	if !kind.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown backup kind %q", kind))
	}
	s.mu.Lock()
	manifest, err := s.loadManifest()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	var entry *models.BackupEntry
	for i := range manifest[kind] {
		if filepath.Clean(manifest[kind][i].FilePath) == filepath.Clean(path) {
			entry = &manifest[kind][i]
		}
	}
	if entry == nil {
		return appErrors.Clone(appErrors.ErrBackupIntegrity, "backup is not listed in the manifest")
	}
	sum, err := fileMD5(path)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackupIntegrity.Code, appErrors.ErrBackupIntegrity.Status, "backup file is unreadable")
	}
	if sum != entry.MD5 {
		return appErrors.Clone(appErrors.ErrBackupIntegrity, "backup checksum mismatch")
	}
	return nil
}

// RestoreDatabase verifies path and replays it with psql.
func (s *BackupService) RestoreDatabase(ctx context.Context, path string) error {
	if err := s.Verify(models.BackupDatabase, path); err != nil {
		return err
	}
	if s.cfg.DatabaseURL == "" {
		return appErrors.Clone(appErrors.ErrConfiguration, "DATABASE_URL is required for database restores")
	}
	if _, err := s.runner.Run(ctx, s.cfg.PsqlPath, s.cfg.DatabaseURL, "-f", path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database restore failed")
	}
	s.logger.Info("database restored", zap.String("file", path))
	return nil
}

// RestoreFiles verifies path, extracts it into staging and replaces every
// managed directory with its staged copy.
func (s *BackupService) RestoreFiles(ctx context.Context, path string) error {
	if err := s.Verify(models.BackupFiles, path); err != nil {
		return err
	}
	staging, err := os.MkdirTemp("", "wardrobe-restore-*")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staging directory")
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	if err := unzipTo(path, staging); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackupIntegrity.Code, appErrors.ErrBackupIntegrity.Status, "failed to extract files backup")
	}
	for _, dir := range s.cfg.ManagedDirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := storage.ReplaceTree(filepath.Join(staging, dir), filepath.Join(s.cfg.StorageRoot, dir)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore "+dir)
		}
	}
	s.logger.Info("files restored", zap.String("file", path))
	return nil
}

// Rotate drops manifest entries older than daysToKeep and deletes backup
// files no remaining entry references.
func (s *BackupService) Rotate(daysToKeep int) (*models.RotateReport, error) {
	if daysToKeep <= 0 {
		daysToKeep = s.cfg.DaysToKeep
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysToKeep)

	s.mu.Lock()
	defer s.mu.Unlock()
	manifest, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	report := &models.RotateReport{DeletedFiles: []string{}}
	keep := map[string]struct{}{}
	for kind, entries := range manifest {
		kept := entries[:0]
		for _, e := range entries {
			if e.Timestamp.Before(cutoff) {
				report.DroppedEntries++
				continue
			}
			kept = append(kept, e)
			keep[filepath.Clean(e.FilePath)] = struct{}{}
		}
		manifest[kind] = kept
	}
	if err := s.saveManifest(manifest); err != nil {
		return nil, err
	}

	for _, kind := range []models.BackupKind{models.BackupDatabase, models.BackupFiles} {
		dir := filepath.Join(s.cfg.Dir, string(kind))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan backups")
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			full := filepath.Join(dir, de.Name())
			if _, ok := keep[filepath.Clean(full)]; ok {
				continue
			}
			if err := os.Remove(full); err != nil {
				s.logger.Warn("failed to remove stale backup", zap.String("file", full), zap.Error(err))
				continue
			}
			report.DeletedFiles = append(report.DeletedFiles, full)
		}
	}
	sort.Strings(report.DeletedFiles)
	s.logger.Info("backups rotated", zap.Int("dropped", report.DroppedEntries), zap.Int("deleted", len(report.DeletedFiles)))
	return report, nil
}

// List returns the manifest.
func (s *BackupService) List() (models.BackupManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadManifest()
}

func (s *BackupService) manifestPath() string {
	return filepath.Join(s.cfg.Dir, manifestFile)
}

func (s *BackupService) loadManifest() (models.BackupManifest, error) {
	manifest := models.BackupManifest{}
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read backup manifest")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return manifest, nil
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackupIntegrity.Code, appErrors.ErrBackupIntegrity.Status, "backup manifest is corrupt")
	}
	return manifest, nil
}

func (s *BackupService) saveManifest(m models.BackupManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode backup manifest")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create backup directory")
	}
	if err := atomic.WriteFile(s.manifestPath(), bytes.NewReader(data)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write backup manifest")
	}
	return nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func zipDir(src, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close() //nolint:errcheck
		_, err = io.Copy(w, in)
		return err
	})
	if walkErr != nil {
		zw.Close()  //nolint:errcheck
		out.Close() //nolint:errcheck
		return walkErr
	}
	if err := zw.Close(); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}

// unzipTo extracts archive into dst and rejects entries escaping dst.
func unzipTo(archive, dst string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close() //nolint:errcheck

	root := filepath.Clean(dst) + string(filepath.Separator)
	for _, f := range zr.File {
		target := filepath.Join(dst, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes the restore directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}
