package service

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/jobs"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

type settingsStub struct {
	mu       sync.Mutex
	settings models.CleanupSettings
	touched  []time.Time
}

func (s *settingsStub) Get(context.Context) (*models.CleanupSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.settings
	return &out, nil
}

func (s *settingsStub) touchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.touched)
}

func (s *settingsStub) Update(_ context.Context, patch models.CleanupSettingsPatch) (*models.CleanupSettings, error) {
	if patch.MaxAgeHours != nil {
		s.settings.MaxAgeHours = *patch.MaxAgeHours
	}
	if patch.CleanupIntervalHours != nil {
		s.settings.CleanupIntervalHours = *patch.CleanupIntervalHours
	}
	if patch.BatchSize != nil {
		s.settings.BatchSize = *patch.BatchSize
	}
	if patch.MaxWorkers != nil {
		s.settings.MaxWorkers = *patch.MaxWorkers
	}
	return s.Get(context.Background())
}

func (s *settingsStub) TouchLastCleanup(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, at)
	s.settings.LastCleanup = &at
	return nil
}

type reconcileStub struct {
	calls atomic.Int32
}

func (r *reconcileStub) ReconcileOrphans(context.Context) (*models.ReconcileReport, error) {
	r.calls.Add(1)
	return &models.ReconcileReport{Orphaned: []int64{7}}, nil
}

func ageFile(t *testing.T, store *storage.LocalStorage, rel string, age time.Duration) {
	t.Helper()
	_, err := store.Save(rel, []byte("png"))
	require.NoError(t, err)
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(store.Path(rel), when, when))
}

func newMaintenanceForTest(t *testing.T) (*MaintenanceService, *settingsStub, *storage.LocalStorage, *fakeOutfits) {
	t.Helper()
	settings := &settingsStub{settings: models.DefaultCleanupSettings()}
	store := newTestStorage(t)
	outfits := newFakeOutfits(newFakeItems())
	svc := NewMaintenanceService(settings, outfits, store, &reconcileStub{}, nil, nil, zap.NewNop(), MaintenanceConfig{})
	return svc, settings, store, outfits
}

func TestMaintenanceServiceRunCleanupDeletesExpiredComposites(t *testing.T) {
	svc, settings, store, _ := newMaintenanceForTest(t)
	settings.settings.BatchSize = 1
	ageFile(t, store, "merged_outfits/user_1/outfit_old.png", 48*time.Hour)
	ageFile(t, store, "merged_outfits/user_2/outfit_old.png", 30*time.Hour)
	ageFile(t, store, "merged_outfits/user_1/outfit_new.png", time.Hour)
	ageFile(t, store, "wardrobe/user_1/outfit_saved.png", 90*time.Hour)

	report, err := svc.RunCleanup(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Deleted)
	assert.Zero(t, report.Failed)
	assert.False(t, store.Exists("merged_outfits/user_1/outfit_old.png"))
	assert.True(t, store.Exists("merged_outfits/user_1/outfit_new.png"))
	assert.True(t, store.Exists("wardrobe/user_1/outfit_saved.png"))
	assert.Len(t, settings.touched, 1)
}

func TestMaintenanceServiceRunCleanupHonoursInterval(t *testing.T) {
	svc, settings, store, _ := newMaintenanceForTest(t)
	last := time.Now().Add(-time.Hour)
	settings.settings.LastCleanup = &last
	ageFile(t, store, "merged_outfits/user_1/outfit_old.png", 48*time.Hour)

	report, err := svc.RunCleanup(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.WithinDuration(t, last.Add(12*time.Hour), report.NextRunAt, time.Second)
	assert.True(t, store.Exists("merged_outfits/user_1/outfit_old.png"))
	assert.Empty(t, settings.touched)

	report, err = svc.RunCleanup(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Deleted)
}

func TestMaintenanceServiceStatistics(t *testing.T) {
	svc, _, store, outfits := newMaintenanceForTest(t)
	ageFile(t, store, "merged_outfits/user_1/a.png", time.Hour)
	ageFile(t, store, "merged_outfits/user_1/b.png", time.Hour)
	ageFile(t, store, "wardrobe/user_1/c.png", time.Hour)
	outfits.outfits["c"] = models.SavedOutfit{OutfitID: "c", UserID: 1}

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.TemporaryFiles)
	assert.Equal(t, 1, stats.SavedOutfits)
	assert.Equal(t, 24, stats.Settings.MaxAgeHours)
}

func TestMaintenanceServiceUpdateSettings(t *testing.T) {
	svc, _, _, _ := newMaintenanceForTest(t)
	zero := 0
	_, err := svc.UpdateSettings(context.Background(), models.CleanupSettingsPatch{BatchSize: &zero})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	hours := 48
	got, err := svc.UpdateSettings(context.Background(), models.CleanupSettingsPatch{MaxAgeHours: &hours})
	require.NoError(t, err)
	assert.Equal(t, 48, got.MaxAgeHours)
	assert.Equal(t, 12, got.CleanupIntervalHours)
}

func TestMaintenanceServiceJobs(t *testing.T) {
	settings := &settingsStub{settings: models.DefaultCleanupSettings()}
	reconciler := &reconcileStub{}
	svc := NewMaintenanceService(settings, newFakeOutfits(newFakeItems()), newTestStorage(t), reconciler, nil, nil, zap.NewNop(), MaintenanceConfig{})

	queue := jobs.NewQueue("maintenance-test", jobs.QueueConfig{Workers: 1})
	svc.RegisterJobs(queue)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	require.NoError(t, queue.Enqueue(jobs.Job{Type: JobCompositeCleanup, Payload: true}))
	require.NoError(t, queue.Enqueue(jobs.Job{Type: JobReconcileOrphans}))

	require.Eventually(t, func() bool {
		return settings.touchCount() == 1 && reconciler.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
