package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	Backup      BackupConfig
	Preferences PreferenceConfig
	Maintenance MaintenanceConfig
	RateLimit   RateLimitConfig
	Advisor     AdvisorConfig
}

// DatabaseConfig describes how to reach PostgreSQL. URL wins over the
// discrete PG* settings when present.
type DatabaseConfig struct {
	URL              string
	Host             string
	Port             int
	User             string
	Password         string
	Name             string
	SSLMode          string
	ApplicationName  string
	MaxOpenConns     int
	MaxIdleConns     int
	StatementTimeout time.Duration
	PoolTimeout      time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StorageConfig locates the managed image directories. The directory names
// are relative to Root.
type StorageConfig struct {
	Root           string
	UploadDir      string
	WardrobeDir    string
	CompositeDir   string
	ImageURLSecret string
	ImageURLTTL    time.Duration
	MaxUploadBytes int64
}

// BackupConfig drives the backup manager.
type BackupConfig struct {
	Dir         string
	DaysToKeep  int
	PgDumpPath  string
	PsqlPath    string
	KeepPerKind int
}

// PreferenceConfig toggles the preference cache.
type PreferenceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// MaintenanceConfig schedules background cleanup and reconciliation.
type MaintenanceConfig struct {
	Enabled bool
	Tick    time.Duration
	Workers int
}

// RateLimitConfig bounds upload and compose traffic per client.
type RateLimitConfig struct {
	PerMinute int
}

// AdvisorConfig carries the credentials of the external styling advisor.
type AdvisorConfig struct {
	APIKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:              v.GetString("DATABASE_URL"),
		Host:             v.GetString("PGHOST"),
		Port:             v.GetInt("PGPORT"),
		User:             v.GetString("PGUSER"),
		Password:         v.GetString("PGPASSWORD"),
		Name:             v.GetString("PGDATABASE"),
		SSLMode:          v.GetString("PGSSLMODE"),
		ApplicationName:  v.GetString("DB_APPLICATION_NAME"),
		MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		StatementTimeout: parseDuration(v.GetString("DB_STATEMENT_TIMEOUT"), 30*time.Second),
		PoolTimeout:      parseDuration(v.GetString("DB_POOL_TIMEOUT"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("SECRET_KEY"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	root := v.GetString("STORAGE_ROOT")
	maxUpload := v.GetInt64("MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Root:           root,
		UploadDir:      v.GetString("UPLOAD_DIR"),
		WardrobeDir:    v.GetString("WARDROBE_DIR"),
		CompositeDir:   v.GetString("COMPOSITE_DIR"),
		ImageURLSecret: v.GetString("IMAGE_URL_SECRET"),
		ImageURLTTL:    parseDuration(v.GetString("IMAGE_URL_TTL"), time.Hour),
		MaxUploadBytes: maxUpload,
	}

	cfg.Backup = BackupConfig{
		Dir:         underRoot(root, v.GetString("BACKUP_DIR")),
		DaysToKeep:  v.GetInt("BACKUP_DAYS_TO_KEEP"),
		PgDumpPath:  v.GetString("PG_DUMP_PATH"),
		PsqlPath:    v.GetString("PSQL_PATH"),
		KeepPerKind: v.GetInt("BACKUP_KEEP_PER_KIND"),
	}

	cfg.Preferences = PreferenceConfig{
		CacheEnabled: v.GetBool("ENABLE_PREFERENCE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("PREFERENCE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Maintenance = MaintenanceConfig{
		Enabled: v.GetBool("ENABLE_MAINTENANCE"),
		Tick:    parseDuration(v.GetString("MAINTENANCE_TICK"), time.Hour),
		Workers: v.GetInt("MAINTENANCE_WORKERS"),
	}

	cfg.RateLimit = RateLimitConfig{PerMinute: v.GetInt("UPLOAD_RATE_PER_MINUTE")}

	cfg.Advisor = AdvisorConfig{APIKey: v.GetString("ANTHROPIC_API_KEY")}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the discrete PG* keys that are missing when no URL is set.
func (c DatabaseConfig) Validate() error {
	if c.URL != "" {
		return nil
	}
	var missing []string
	if c.Host == "" {
		missing = append(missing, "PGHOST")
	}
	if c.Name == "" {
		missing = append(missing, "PGDATABASE")
	}
	if c.User == "" {
		missing = append(missing, "PGUSER")
	}
	if c.Password == "" {
		missing = append(missing, "PGPASSWORD")
	}
	if len(missing) == 0 {
		return nil
	}
	return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("missing database settings: %s", strings.Join(missing, ", ")))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PGHOST", "")
	v.SetDefault("PGPORT", 5432)
	v.SetDefault("PGUSER", "")
	v.SetDefault("PGPASSWORD", "")
	v.SetDefault("PGDATABASE", "")
	v.SetDefault("PGSSLMODE", "require")
	v.SetDefault("DB_APPLICATION_NAME", "outfit_wizard")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("DB_POOL_TIMEOUT", "30s")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SECRET_KEY", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "outfit-wizard")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 7)

	v.SetDefault("STORAGE_ROOT", ".")
	v.SetDefault("UPLOAD_DIR", "user_images")
	v.SetDefault("WARDROBE_DIR", "wardrobe")
	v.SetDefault("COMPOSITE_DIR", "merged_outfits")
	v.SetDefault("IMAGE_URL_SECRET", "dev_image_secret")
	v.SetDefault("IMAGE_URL_TTL", "1h")
	v.SetDefault("MAX_UPLOAD_BYTES", 10*1024*1024)

	v.SetDefault("BACKUP_DIR", "backups")
	v.SetDefault("BACKUP_DAYS_TO_KEEP", 30)
	v.SetDefault("BACKUP_KEEP_PER_KIND", 5)
	v.SetDefault("PG_DUMP_PATH", "pg_dump")
	v.SetDefault("PSQL_PATH", "psql")

	v.SetDefault("ENABLE_PREFERENCE_CACHE", false)
	v.SetDefault("PREFERENCE_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_MAINTENANCE", true)
	v.SetDefault("MAINTENANCE_TICK", "1h")
	v.SetDefault("MAINTENANCE_WORKERS", 1)

	v.SetDefault("UPLOAD_RATE_PER_MINUTE", 30)
	v.SetDefault("ANTHROPIC_API_KEY", "")
}

func underRoot(root, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
