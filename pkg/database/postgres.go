package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/pkg/config"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/retry"
)

// Querier is the subset of sqlx shared by *sqlx.Conn, *sqlx.Tx and *sqlx.DB.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

// QueryObserver receives the wall time of every scoped database call.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// PoolOptions tunes acquisition and retry behaviour.
type PoolOptions struct {
	AcquireTimeout time.Duration
	Retry          retry.Policy
	Observer       QueryObserver
	Logger         *zap.Logger
}

// Pool hands out scoped connections from a bounded sqlx handle. A broken
// SSL session causes the handle to be reopened before the next attempt.
type Pool struct {
	mu   sync.RWMutex
	db   *sqlx.DB
	open func() (*sqlx.DB, error)

	acquireTimeout time.Duration
	policy         retry.Policy
	observer       QueryObserver
	logger         *zap.Logger
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewPool opens PostgreSQL and wraps it in a Pool that can reopen itself.
func NewPool(cfg config.DatabaseConfig, opts PoolOptions) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := NewPostgres(cfg)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrTransient, err, "failed to connect to database")
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = cfg.PoolTimeout
	}
	p := NewPoolFromDB(db, opts)
	p.open = func() (*sqlx.DB, error) { return NewPostgres(cfg) }
	return p, nil
}

// NewPoolFromDB wraps an existing handle. The pool never reopens it.
func NewPoolFromDB(db *sqlx.DB, opts PoolOptions) *Pool {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 30 * time.Second
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = retry.Default(IsTransient)
	}
	if opts.Retry.Retriable == nil {
		opts.Retry.Retriable = IsTransient
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pool{
		db:             db,
		acquireTimeout: opts.AcquireTimeout,
		policy:         opts.Retry,
		observer:       opts.Observer,
		logger:         opts.Logger,
	}
}

// SetObserver installs the query timing sink.
func (p *Pool) SetObserver(o QueryObserver) {
	p.mu.Lock()
	p.observer = o
	p.mu.Unlock()
}

// DB exposes the current handle.
func (p *Pool) DB() *sqlx.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Ping checks connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	return p.DB().PingContext(ctx)
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	return p.DB().Close()
}

// Do runs fn on a dedicated connection that is always returned to the pool.
func (p *Pool) Do(ctx context.Context, label string, fn func(ctx context.Context, q Querier) error) error {
	return p.run(ctx, label, func(ctx context.Context) error {
		conn, err := p.acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Close() //nolint:errcheck
		return fn(ctx, conn)
	})
}

// Tx runs fn inside a transaction on a dedicated connection. The
// transaction is rolled back on any error or panic and committed otherwise.
func (p *Pool) Tx(ctx context.Context, label string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return p.run(ctx, label, func(ctx context.Context) (err error) {
		conn, err := p.acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Close() //nolint:errcheck

		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					p.logger.Warn("transaction rollback failed", zap.String("query", label), zap.Error(rbErr))
				}
			}
		}()

		if err = fn(ctx, tx); err != nil {
			return err
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	})
}

func (p *Pool) run(ctx context.Context, label string, op func(ctx context.Context) error) error {
	start := time.Now()
	policy := p.policy
	policy.OnRetry = func(attempt int, err error) {
		p.logger.Warn("database operation failed, retrying",
			zap.String("query", label), zap.Int("attempt", attempt), zap.Error(err))
		if IsConnectionLost(err) {
			p.reopen()
		}
	}
	err := retry.Do(ctx, policy, op)

	p.mu.RLock()
	observer := p.observer
	p.mu.RUnlock()
	if observer != nil {
		observer.ObserveDBQuery(label, time.Since(start))
	}
	return Classify(err)
}

func (p *Pool) acquire(ctx context.Context) (*sqlx.Conn, error) {
	acqCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	conn, err := p.DB().Connx(acqCtx)
	if err != nil {
		if errors.Is(acqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, appErrors.WrapAs(appErrors.ErrTimeout, err, "timed out waiting for a database connection")
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

func (p *Pool) reopen() {
	if p.open == nil {
		return
	}
	db, err := p.open()
	if err != nil {
		p.logger.Warn("database reconnect failed", zap.Error(err))
		return
	}
	p.mu.Lock()
	old := p.db
	p.db = db
	p.mu.Unlock()
	_ = old.Close()
	p.logger.Info("database connection pool recreated")
}

// BuildDSN renders a lib/pq connection string carrying the statement timeout
// and application name as runtime parameters.
func BuildDSN(cfg config.DatabaseConfig) (string, error) {
	var base string
	if cfg.URL != "" {
		parsed, err := pq.ParseURL(cfg.URL)
		if err != nil {
			return "", appErrors.WrapAs(appErrors.ErrConfiguration, err, "invalid DATABASE_URL")
		}
		base = parsed
	} else {
		base = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			quote(cfg.Host), cfg.Port, quote(cfg.User), quote(cfg.Password), quote(cfg.Name))
	}

	parts := []string{base}
	if cfg.SSLMode != "" && !strings.Contains(base, "sslmode=") {
		parts = append(parts, "sslmode="+quote(cfg.SSLMode))
	}
	timeout := cfg.StatementTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parts = append(parts, fmt.Sprintf("statement_timeout=%d", timeout.Milliseconds()))
	if cfg.ApplicationName != "" && !strings.Contains(base, "application_name=") {
		parts = append(parts, "application_name="+quote(cfg.ApplicationName))
	}
	return strings.Join(parts, " "), nil
}

// CommandDSN renders a connection string for the libpq command line tools.
// Runtime parameters such as statement_timeout are omitted.
func CommandDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	parts := []string{fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		quote(cfg.Host), cfg.Port, quote(cfg.User), quote(cfg.Password), quote(cfg.Name))}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+quote(cfg.SSLMode))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
