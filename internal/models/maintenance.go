package models

import "time"

// CleanupSettings is the singleton cleanup configuration row.
type CleanupSettings struct {
	ID                   int64      `db:"id" json:"-"`
	MaxAgeHours          int        `db:"max_age_hours" json:"max_age_hours"`
	CleanupIntervalHours int        `db:"cleanup_interval_hours" json:"cleanup_interval_hours"`
	BatchSize            int        `db:"batch_size" json:"batch_size"`
	MaxWorkers           int        `db:"max_workers" json:"max_workers"`
	LastCleanup          *time.Time `db:"last_cleanup" json:"last_cleanup,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// DefaultCleanupSettings returns the values used when no row exists.
func DefaultCleanupSettings() CleanupSettings {
	return CleanupSettings{MaxAgeHours: 24, CleanupIntervalHours: 12, BatchSize: 100, MaxWorkers: 4}
}

// CleanupSettingsPatch updates only the non-nil fields.
type CleanupSettingsPatch struct {
	MaxAgeHours          *int `json:"max_age_hours" validate:"omitempty,min=1,max=8760"`
	CleanupIntervalHours *int `json:"cleanup_interval_hours" validate:"omitempty,min=1,max=720"`
	BatchSize            *int `json:"batch_size" validate:"omitempty,min=1,max=10000"`
	MaxWorkers           *int `json:"max_workers" validate:"omitempty,min=1,max=64"`
}

// CleanupReport is the outcome of one composite cleanup run.
type CleanupReport struct {
	Skipped   bool      `json:"skipped"`
	Scanned   int       `json:"scanned"`
	Deleted   int       `json:"deleted"`
	Failed    int       `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
	NextRunAt time.Time `json:"next_run_at"`
}

// CleanupStats summarises managed image files.
type CleanupStats struct {
	Settings       CleanupSettings `json:"settings"`
	TotalFiles     int             `json:"total_files"`
	SavedOutfits   int             `json:"saved_outfits"`
	TemporaryFiles int             `json:"temporary_files"`
}

// ReconcileReport is the outcome of one orphan reconciliation.
type ReconcileReport struct {
	Checked  int     `json:"checked"`
	Orphaned []int64 `json:"orphaned"`
}
