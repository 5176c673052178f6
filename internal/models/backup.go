package models

import "time"

// BackupKind names a family of backup files in the manifest.
type BackupKind string

const (
	BackupDatabase BackupKind = "database"
	BackupFiles    BackupKind = "files"
)

// Valid reports whether k is a known backup kind.
func (k BackupKind) Valid() bool {
	return k == BackupDatabase || k == BackupFiles
}

// BackupEntry is one manifest record.
type BackupEntry struct {
	FilePath  string     `json:"filepath"`
	Timestamp time.Time  `json:"timestamp"`
	MD5       string     `json:"md5"`
	Kind      BackupKind `json:"kind"`
}

// BackupManifest holds the most recent entries per kind, oldest first.
type BackupManifest map[BackupKind][]BackupEntry

// BackupRequest selects what a snapshot covers.
type BackupRequest struct {
	Database bool `json:"database"`
	Files    bool `json:"files"`
}

// BackupFileRequest points at one backup file.
type BackupFileRequest struct {
	Kind     BackupKind `json:"kind" validate:"required,oneof=database files"`
	FilePath string     `json:"filepath" validate:"required"`
}

// RotateRequest drops entries older than DaysToKeep.
type RotateRequest struct {
	DaysToKeep int `json:"days_to_keep" validate:"omitempty,min=1,max=3650"`
}

// RotateReport lists what a rotation removed.
type RotateReport struct {
	DroppedEntries int      `json:"dropped_entries"`
	DeletedFiles   []string `json:"deleted_files"`
}
