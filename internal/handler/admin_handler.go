package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
)

type maintenanceService interface {
	RunCleanup(ctx context.Context, force bool) (*models.CleanupReport, error)
	Statistics(ctx context.Context) (*models.CleanupStats, error)
	UpdateSettings(ctx context.Context, patch models.CleanupSettingsPatch) (*models.CleanupSettings, error)
}

type backupService interface {
	Snapshot(ctx context.Context, req models.BackupRequest) ([]models.BackupEntry, error)
	Verify(kind models.BackupKind, path string) error
	RestoreDatabase(ctx context.Context, path string) error
	RestoreFiles(ctx context.Context, path string) error
	Rotate(daysToKeep int) (*models.RotateReport, error)
	List() (models.BackupManifest, error)
}

type orphanReconciler interface {
	ReconcileOrphans(ctx context.Context) (*models.ReconcileReport, error)
}

// AdminHandler exposes maintenance and backup operations to administrators.
type AdminHandler struct {
	maintenance maintenanceService
	backups     backupService
	orphans     orphanReconciler
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(maintenance maintenanceService, backups backupService, orphans orphanReconciler) *AdminHandler {
	return &AdminHandler{maintenance: maintenance, backups: backups, orphans: orphans}
}

// ReconcileOrphans godoc
// @Summary Reconcile orphaned items
// @Description Nulls the image path of items whose bitmap is missing and records an audit row
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/orphans/reconcile [post]
func (h *AdminHandler) ReconcileOrphans(c *gin.Context) {
	report, err := h.orphans.ReconcileOrphans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "orphans reconciled", report)
}

// CleanupStats godoc
// @Summary Cleanup settings and file statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/cleanup [get]
func (h *AdminHandler) CleanupStats(c *gin.Context) {
	stats, err := h.maintenance.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// UpdateCleanup godoc
// @Summary Update cleanup settings
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.CleanupSettingsPatch true "Settings"
// @Success 200 {object} response.Envelope
// @Router /admin/cleanup [patch]
func (h *AdminHandler) UpdateCleanup(c *gin.Context) {
	var patch models.CleanupSettingsPatch
	if !bindJSON(c, &patch, "invalid cleanup settings") {
		return
	}
	settings, err := h.maintenance.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "cleanup settings updated", settings)
}

// RunCleanup godoc
// @Summary Run composite cleanup
// @Tags Admin
// @Produce json
// @Param force query bool false "Ignore the cleanup interval"
// @Success 200 {object} response.Envelope
// @Router /admin/cleanup/run [post]
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "true"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "force must be a boolean"))
		return
	}
	report, err := h.maintenance.RunCleanup(c.Request.Context(), force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "cleanup finished", report)
}

// CreateBackup godoc
// @Summary Create a backup
// @Description Dumps the database and/or archives the image directories; both when neither is selected
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.BackupRequest false "Selection"
// @Success 201 {object} response.Envelope
// @Router /admin/backups [post]
func (h *AdminHandler) CreateBackup(c *gin.Context) {
	var req models.BackupRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid backup payload") {
		return
	}
	entries, err := h.backups.Snapshot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, response.Result{Success: true, Message: "backup created", Data: entries})
}

// ListBackups godoc
// @Summary List backups
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/backups [get]
func (h *AdminHandler) ListBackups(c *gin.Context) {
	manifest, err := h.backups.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, manifest, nil)
}

// VerifyBackup godoc
// @Summary Verify backup checksum
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.BackupFileRequest true "Backup file"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/backups/verify [post]
func (h *AdminHandler) VerifyBackup(c *gin.Context) {
	req, ok := h.bindFile(c)
	if !ok {
		return
	}
	if err := h.backups.Verify(req.Kind, req.FilePath); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "backup verified", nil)
}

// RestoreBackup godoc
// @Summary Restore a backup
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.BackupFileRequest true "Backup file"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/backups/restore [post]
func (h *AdminHandler) RestoreBackup(c *gin.Context) {
	req, ok := h.bindFile(c)
	if !ok {
		return
	}
	var err error
	switch req.Kind {
	case models.BackupDatabase:
		err = h.backups.RestoreDatabase(c.Request.Context(), req.FilePath)
	case models.BackupFiles:
		err = h.backups.RestoreFiles(c.Request.Context(), req.FilePath)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "kind must be database or files")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "backup restored", nil)
}

// RotateBackups godoc
// @Summary Rotate backups
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.RotateRequest false "Retention"
// @Success 200 {object} response.Envelope
// @Router /admin/backups/rotate [post]
func (h *AdminHandler) RotateBackups(c *gin.Context) {
	var req models.RotateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid rotate payload") {
		return
	}
	if req.DaysToKeep < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days_to_keep must be positive"))
		return
	}
	report, err := h.backups.Rotate(req.DaysToKeep)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "backups rotated", report)
}

func (h *AdminHandler) bindFile(c *gin.Context) (models.BackupFileRequest, bool) {
	var req models.BackupFileRequest
	if !bindJSON(c, &req, "invalid backup file payload") {
		return req, false
	}
	if req.FilePath == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "filepath is required"))
		return req, false
	}
	return req, true
}
