package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

type fakeRunner struct {
	calls [][]string
	fail  bool
}

// Run mimics pg_dump by writing the file named after -f.
func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.fail {
		return nil, errors.New("exit status 1")
	}
	if name == "pg_dump" && len(args) == 3 {
		return nil, os.WriteFile(args[2], []byte("-- dump\nCREATE TABLE users();\n"), 0o644)
	}
	return nil, nil
}

func newBackupForTest(t *testing.T) (*BackupService, *fakeRunner, string) {
	t.Helper()
	root := t.TempDir()
	runner := &fakeRunner{}
	svc := NewBackupService(runner, nil, zap.NewNop(), BackupConfig{
		Dir:         filepath.Join(root, "backups"),
		StorageRoot: root,
		DatabaseURL: "postgres://wardrobe@localhost/wardrobe",
	})
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, runner, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBackupServiceDatabaseRoundTrip(t *testing.T) {
	svc, runner, _ := newBackupForTest(t)

	entry, err := svc.BackupDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.BackupDatabase, entry.Kind)
	assert.Regexp(t, `database/db_\d{8}_\d{6}\.sql$`, entry.FilePath)
	assert.Len(t, entry.MD5, 32)

	require.NoError(t, svc.Verify(models.BackupDatabase, entry.FilePath))
	require.NoError(t, svc.RestoreDatabase(context.Background(), entry.FilePath))
	last := runner.calls[len(runner.calls)-1]
	assert.Equal(t, []string{"psql", "postgres://wardrobe@localhost/wardrobe", "-f", entry.FilePath}, last)

	require.NoError(t, os.Truncate(entry.FilePath, 4))
	err = svc.Verify(models.BackupDatabase, entry.FilePath)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrBackupIntegrity))
	err = svc.RestoreDatabase(context.Background(), entry.FilePath)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrBackupIntegrity))
}

func TestBackupServiceDatabaseFailureLeavesNoEntry(t *testing.T) {
	svc, runner, _ := newBackupForTest(t)
	runner.fail = true

	_, err := svc.BackupDatabase(context.Background())
	require.Error(t, err)
	manifest, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, manifest[models.BackupDatabase])
}

func TestBackupServiceFilesRoundTrip(t *testing.T) {
	svc, _, root := newBackupForTest(t)
	writeFile(t, filepath.Join(root, "user_images", "shirt_a.png"), "shirt")
	writeFile(t, filepath.Join(root, "wardrobe", "user_1", "outfit_b.png"), "outfit")

	entry, err := svc.BackupFiles(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `files/files_\d{8}_\d{6}\.zip$`, entry.FilePath)

	writeFile(t, filepath.Join(root, "user_images", "shirt_a.png"), "changed")
	writeFile(t, filepath.Join(root, "user_images", "extra.png"), "extra")
	require.NoError(t, os.RemoveAll(filepath.Join(root, "wardrobe")))

	require.NoError(t, svc.RestoreFiles(context.Background(), entry.FilePath))
	data, err := os.ReadFile(filepath.Join(root, "user_images", "shirt_a.png"))
	require.NoError(t, err)
	assert.Equal(t, "shirt", string(data))
	assert.NoFileExists(t, filepath.Join(root, "user_images", "extra.png"))
	assert.FileExists(t, filepath.Join(root, "wardrobe", "user_1", "outfit_b.png"))
	assert.DirExists(t, filepath.Join(root, "merged_outfits"))
}

func TestBackupServiceVerifyUnknownFile(t *testing.T) {
	svc, _, root := newBackupForTest(t)
	stray := filepath.Join(root, "backups", "database", "db_stray.sql")
	writeFile(t, stray, "-- dump")

	err := svc.Verify(models.BackupDatabase, stray)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrBackupIntegrity))

	err = svc.Verify(models.BackupKind("logs"), stray)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestAppendManifestKeepsNewestFive(t *testing.T) {
	manifest := models.BackupManifest{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []models.BackupEntry
	for i := 0; i < 7; i++ {
		e := models.BackupEntry{FilePath: fmt.Sprintf("db_%d.sql", i), Timestamp: base.Add(time.Duration(i) * time.Hour), MD5: "x", Kind: models.BackupDatabase}
		all = append(all, e)
		AppendManifest(manifest, e, 5)
	}
	AppendManifest(manifest, models.BackupEntry{FilePath: "files_0.zip", Timestamp: base, Kind: models.BackupFiles}, 5)

	if diff := cmp.Diff(all[2:], manifest[models.BackupDatabase]); diff != "" {
		t.Fatalf("database entries mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, manifest[models.BackupFiles], 1)
}

func TestBackupServiceManifestPersistsFIFO(t *testing.T) {
	svc, _, _ := newBackupForTest(t)
	var paths []string
	for i := 0; i < 6; i++ {
		entry, err := svc.BackupDatabase(context.Background())
		require.NoError(t, err)
		paths = append(paths, entry.FilePath)
	}

	manifest, err := svc.List()
	require.NoError(t, err)
	var got []string
	for _, e := range manifest[models.BackupDatabase] {
		got = append(got, e.FilePath)
	}
	if diff := cmp.Diff(paths[1:], got); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupServiceRotate(t *testing.T) {
	svc, _, root := newBackupForTest(t)
	entry, err := svc.BackupDatabase(context.Background())
	require.NoError(t, err)
	orphan := filepath.Join(root, "backups", "database", "db_20200101_000000.sql")
	writeFile(t, orphan, "-- old")

	report, err := svc.Rotate(30)
	require.NoError(t, err)
	assert.Zero(t, report.DroppedEntries)
	assert.Equal(t, []string{orphan}, report.DeletedFiles)
	assert.FileExists(t, entry.FilePath)

	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	report, err = svc.Rotate(30)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DroppedEntries)
	assert.Equal(t, []string{entry.FilePath}, report.DeletedFiles)

	manifest, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, manifest[models.BackupDatabase])
}

func TestBackupServiceSnapshotDefaultsToBoth(t *testing.T) {
	svc, _, _ := newBackupForTest(t)
	entries, err := svc.Snapshot(context.Background(), models.BackupRequest{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.BackupDatabase, entries[0].Kind)
	assert.Equal(t, models.BackupFiles, entries[1].Kind)
}
