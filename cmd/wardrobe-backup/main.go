package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/internal/service"
	"github.com/noah-isme/outfit-wizard-api/pkg/config"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
	"github.com/noah-isme/outfit-wizard-api/pkg/logger"
)

const usage = `usage: wardrobe-backup <command> [flags]

commands:
  snapshot [--db] [--files]        Create a backup (both kinds when no flag is given)
  verify --kind K --file PATH      Check a backup against its recorded MD5
  restore --kind K --file PATH     Verify then restore a backup
  rotate [--days N]                Drop entries older than N days and unreferenced files
  list                             Print the backup manifest
`

type backupManager interface {
	Snapshot(ctx context.Context, req models.BackupRequest) ([]models.BackupEntry, error)
	Verify(kind models.BackupKind, path string) error
	RestoreDatabase(ctx context.Context, path string) error
	RestoreFiles(ctx context.Context, path string) error
	Rotate(daysToKeep int) (*models.RotateReport, error)
	List() (models.BackupManifest, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	svc := service.NewBackupService(service.ExecRunner{}, nil, logr, service.BackupConfig{
		Dir:         cfg.Backup.Dir,
		StorageRoot: cfg.Storage.Root,
		ManagedDirs: []string{cfg.Storage.UploadDir, cfg.Storage.WardrobeDir, cfg.Storage.CompositeDir},
		DatabaseURL: database.CommandDSN(cfg.Database),
		PgDumpPath:  cfg.Backup.PgDumpPath,
		PsqlPath:    cfg.Backup.PsqlPath,
		KeepPerKind: cfg.Backup.KeepPerKind,
		DaysToKeep:  cfg.Backup.DaysToKeep,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, svc, logr, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, svc backupManager, logr *zap.Logger, args []string, out, errOut io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return 0
	}

	cmd, rest := args[0], args[1:]
	flagSet := flag.NewFlagSet(cmd, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var result interface{}
	var err error
	switch cmd {
	case "snapshot":
		db := flagSet.Bool("db", false, "dump the database")
		files := flagSet.Bool("files", false, "archive the image directories")
		if err = flagSet.Parse(rest); err == nil {
			result, err = svc.Snapshot(ctx, models.BackupRequest{Database: *db, Files: *files})
		}
	case "verify", "restore":
		kind := flagSet.String("kind", "", "database or files")
		file := flagSet.String("file", "", "backup file path")
		if err = flagSet.Parse(rest); err != nil {
			break
		}
		if *kind == "" || *file == "" {
			err = fmt.Errorf("--kind and --file are required")
			break
		}
		err = restoreOrVerify(ctx, svc, cmd, models.BackupKind(*kind), *file)
		result = map[string]string{"status": cmd + " ok", "file": *file}
	case "rotate":
		days := flagSet.Int("days", 0, "days to keep (default from BACKUP_DAYS_TO_KEEP)")
		if err = flagSet.Parse(rest); err == nil {
			result, err = svc.Rotate(*days)
		}
	case "list":
		result, err = svc.List()
	default:
		fmt.Fprintf(errOut, "error: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		logr.Error("backup command failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func restoreOrVerify(ctx context.Context, svc backupManager, cmd string, kind models.BackupKind, file string) error {
	if cmd == "verify" {
		return svc.Verify(kind, file)
	}
	switch kind {
	case models.BackupDatabase:
		return svc.RestoreDatabase(ctx, file)
	case models.BackupFiles:
		return svc.RestoreFiles(ctx, file)
	default:
		return fmt.Errorf("kind must be %s or %s", models.BackupDatabase, models.BackupFiles)
	}
}
