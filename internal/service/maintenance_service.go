package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/jobs"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

// Job types handled by the maintenance queue.
const (
	JobCompositeCleanup = "composite_cleanup"
	JobReconcileOrphans = "reconcile_orphans"
)

type cleanupSettingsStore interface {
	Get(ctx context.Context) (*models.CleanupSettings, error)
	Update(ctx context.Context, patch models.CleanupSettingsPatch) (*models.CleanupSettings, error)
	TouchLastCleanup(ctx context.Context, at time.Time) error
}

type outfitCounter interface {
	Count(ctx context.Context) (int, error)
}

type compositeFiles interface {
	List(dir string) ([]storage.FileInfo, error)
	OlderThan(dir string, ttl time.Duration, now time.Time) ([]storage.FileInfo, error)
	Delete(rel string) error
}

type orphanReconciler interface {
	ReconcileOrphans(ctx context.Context) (*models.ReconcileReport, error)
}

// MaintenanceConfig locates the directories the cleanup job inspects.
type MaintenanceConfig struct {
	WardrobeDir  string
	CompositeDir string
}

// MaintenanceService expires ephemeral composites and owns the cleanup settings.
type MaintenanceService struct {
	settings  cleanupSettingsStore
	outfits   outfitCounter
	files     compositeFiles
	orphans   orphanReconciler
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MaintenanceConfig
	now       func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(settings cleanupSettingsStore, outfits outfitCounter, files compositeFiles, orphans orphanReconciler, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg MaintenanceConfig) *MaintenanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WardrobeDir == "" {
		cfg.WardrobeDir = "wardrobe"
	}
	if cfg.CompositeDir == "" {
		cfg.CompositeDir = "merged_outfits"
	}
	return &MaintenanceService{
		settings:  settings,
		outfits:   outfits,
		files:     files,
		orphans:   orphans,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunCleanup deletes composites older than max_age_hours. Unless force is
// set, a run inside cleanup_interval_hours of the last one is skipped.
func (s *MaintenanceService) RunCleanup(ctx context.Context, force bool) (*models.CleanupReport, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, translate(err, "cleanup settings not found", "failed to load cleanup settings")
	}
	now := s.now().UTC()
	interval := time.Duration(settings.CleanupIntervalHours) * time.Hour
	report := &models.CleanupReport{RanAt: now, NextRunAt: now.Add(interval)}

	if !force && settings.LastCleanup != nil {
		next := settings.LastCleanup.Add(interval)
		if now.Before(next) {
			report.Skipped = true
			report.NextRunAt = next
			return report, nil
		}
	}

	stale, err := s.files.OlderThan(s.cfg.CompositeDir, time.Duration(settings.MaxAgeHours)*time.Hour, now)
	if err != nil {
		return nil, translate(err, "composites not found", "failed to scan composites")
	}
	report.Scanned = len(stale)

	results := jobs.RunBatches(ctx, stale, settings.BatchSize, settings.MaxWorkers, func(_ context.Context, f storage.FileInfo) error {
		return s.files.Delete(f.Path)
	})
	for _, res := range results {
		if res.Err != nil {
			report.Failed++
			s.logger.Warn("composite cleanup failed", zap.String("path", res.Item.Path), zap.Error(res.Err))
			continue
		}
		report.Deleted++
	}

	if err := s.settings.TouchLastCleanup(ctx, now); err != nil {
		return nil, translate(err, "cleanup settings not found", "failed to record cleanup")
	}
	s.metrics.RecordCleanup(report.Deleted)
	s.logger.Info("composite cleanup finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Statistics counts managed image files next to the current settings.
func (s *MaintenanceService) Statistics(ctx context.Context) (*models.CleanupStats, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, translate(err, "cleanup settings not found", "failed to load cleanup settings")
	}
	temporary, err := s.files.List(s.cfg.CompositeDir)
	if err != nil {
		return nil, translate(err, "composites not found", "failed to scan composites")
	}
	saved, err := s.files.List(s.cfg.WardrobeDir)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to scan saved outfits")
	}
	savedRows, err := s.outfits.Count(ctx)
	if err != nil {
		return nil, translate(err, "outfits not found", "failed to count saved outfits")
	}
	if savedRows != len(saved) {
		s.logger.Debug("saved outfit rows and files differ", zap.Int("rows", savedRows), zap.Int("files", len(saved)))
	}
	return &models.CleanupStats{
		Settings:       *settings,
		TotalFiles:     len(temporary) + len(saved),
		SavedOutfits:   savedRows,
		TemporaryFiles: len(temporary),
	}, nil
}

// GetSettings returns the cleanup settings, creating the defaults on first use.
func (s *MaintenanceService) GetSettings(ctx context.Context) (*models.CleanupSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, translate(err, "cleanup settings not found", "failed to load cleanup settings")
	}
	return settings, nil
}

// UpdateSettings patches the non-nil fields of patch.
func (s *MaintenanceService) UpdateSettings(ctx context.Context, patch models.CleanupSettingsPatch) (*models.CleanupSettings, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, validationError(err, "invalid cleanup settings")
	}
	settings, err := s.settings.Update(ctx, patch)
	if err != nil {
		return nil, translate(err, "cleanup settings not found", "failed to update cleanup settings")
	}
	s.logger.Info("cleanup settings updated",
		zap.Int("max_age_hours", settings.MaxAgeHours),
		zap.Int("cleanup_interval_hours", settings.CleanupIntervalHours),
	)
	return settings, nil
}

// RegisterJobs binds the maintenance handlers to queue.
func (s *MaintenanceService) RegisterJobs(queue *jobs.Queue) {
	queue.Handle(JobCompositeCleanup, s.handleCleanup)
	queue.Handle(JobReconcileOrphans, s.handleReconcile)
}

func (s *MaintenanceService) handleCleanup(ctx context.Context, job jobs.Job) error {
	force, _ := job.Payload.(bool)
	if _, err := s.RunCleanup(ctx, force); err != nil {
		return fmt.Errorf("composite cleanup: %w", err)
	}
	return nil
}

func (s *MaintenanceService) handleReconcile(ctx context.Context, _ jobs.Job) error {
	if s.orphans == nil {
		return nil
	}
	report, err := s.orphans.ReconcileOrphans(ctx)
	if err != nil {
		return fmt.Errorf("reconcile orphans: %w", err)
	}
	if len(report.Orphaned) > 0 {
		s.logger.Info("orphaned items removed", zap.Int64s("ids", report.Orphaned))
	}
	return nil
}
