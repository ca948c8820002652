package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	lstore "github.com/opencausal/latticegraphd/internal/store"
)

// tracer is the OTel tracer for store-level spans (spec SPEC_FULL §4.8).
// It uses the global provider, a no-op until observability.Init runs.
var tracer = otel.Tracer("github.com/opencausal/latticegraphd/store/dolt")

var storeMetrics struct {
	retryCount  metric.Int64Counter
	txnDuration metric.Float64Histogram
	outcomes    metric.Int64Counter
}

func init() {
	meter := otel.Meter("github.com/opencausal/latticegraphd/store/dolt")
	storeMetrics.retryCount, _ = meter.Int64Counter("latticegraph.store.retries")
	storeMetrics.txnDuration, _ = meter.Float64Histogram("latticegraph.store.txn_duration_seconds")
	storeMetrics.outcomes, _ = meter.Int64Counter("latticegraph.store.outcomes")
}

// Store implements store.Store against a Dolt database, either embedded
// or reached over the network in server mode.
type Store struct {
	db         *sql.DB
	serverMode bool
	closed     atomic.Bool
}

const openMaxElapsed = 30 * time.Second

func openBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

// Open connects to the configured Dolt database and ensures its schema
// is present.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var db *sql.DB
	var err error

	if cfg.ServerMode {
		db, err = sql.Open("mysql", cfg.DSN)
	} else {
		dsn := fmt.Sprintf("file://%s?commitname=latticegraphd&commitemail=latticegraphd@localhost&database=%s",
			cfg.Path, cfg.database())
		db, err = sql.Open("dolt", dsn)
	}
	if err != nil {
		return nil, lstore.WrapDBError("open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	bo := openBackoff()
	pingErr := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx))
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping dolt: %w", lstore.ErrTransient)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", lstore.ErrFatal, err)
	}

	return &Store{db: db, serverMode: cfg.ServerMode}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.db.Close()
	}
	return nil
}

// withRetry runs op, retrying transient errors with exponential backoff.
// A transient error still failing once retries are exhausted is returned
// wrapped in store.ErrTransient.
// Embedded mode already retries at the driver level for lock contention;
// server mode relies entirely on this wrapper since go-sql-driver/mysql
// has no built-in retry (mirrors the teacher's dolt.Store.withRetry).
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		storeMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	if err != nil && isRetryable(err) {
		err = fmt.Errorf("%w: %w", lstore.ErrTransient, err)
	}
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"driver: bad connection", "invalid connection", "broken pipe",
		"connection reset", "connection refused", "lost connection",
		"gone away", "i/o timeout", "database is read only", "deadlock",
		"lock wait timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// withTx runs fn inside one transaction (spec §4.4 Atomicity): either
// every accepted item commits or none do. fn itself never causes a
// rollback for per-item conflicts — only a returned error does.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	defer func() {
		storeMetrics.txnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	spanCtx, span := tracer.Start(ctx, op)
	defer span.End()

	return s.withRetry(spanCtx, func() error {
		tx, err := s.db.BeginTx(spanCtx, nil)
		if err != nil {
			span.RecordError(err)
			return lstore.WrapDBError(op, err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			span.RecordError(err)
			return err
		}
		if err := tx.Commit(); err != nil {
			span.RecordError(err)
			return lstore.WrapDBError(op, err)
		}
		return nil
	})
}
