package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/metrics"
)

const tracerName = "github.com/dom/bookshelf-api/internal/repository/postgres"

type PoolConfig struct {
	MaxConns         int
	AcquireTimeout   time.Duration
	StatementTimeout time.Duration
}

// UnitFunc is one unit of store work. tx is pinned to a single leased
// connection for the duration of the call and must not escape it.
type UnitFunc func(ctx context.Context, tx *gorm.DB) error

// Pool bounds the number of open store connections and runs every unit of
// work on its own leased connection.
type Pool struct {
	db               *gorm.DB
	sqlDB            *sql.DB
	acquireTimeout   time.Duration
	statementTimeout time.Duration
	metrics          *metrics.Metrics
	tracer           trace.Tracer

	inflight sync.WaitGroup
}

func NewPool(db *gorm.DB, cfg PoolConfig, m *metrics.Metrics) (*Pool, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, oops.Code("STORE_POOL_INIT").Wrap(err)
	}
	if cfg.MaxConns < 1 {
		return nil, oops.Code("STORE_POOL_INIT").Errorf("max connections must be positive, got %d", cfg.MaxConns)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	m.RegisterDB(sqlDB)

	return &Pool{
		db:               db,
		sqlDB:            sqlDB,
		acquireTimeout:   cfg.AcquireTimeout,
		statementTimeout: cfg.StatementTimeout,
		metrics:          m,
		tracer:           otel.Tracer(tracerName),
	}, nil
}

// Do runs fn as one unit of work and waits for it.
//
// The unit runs on its own goroutine with a context that ignores the
// caller's cancellation: once started it always completes and releases its
// connection. If ctx is cancelled first, Do returns ctx.Err() and the unit's
// result is discarded.
func (p *Pool) Do(ctx context.Context, op string, fn UnitFunc) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("STORE_UNIT_ABANDONED").With("op", op).Wrap(err)
	}

	done := make(chan error, 1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		done <- p.run(context.WithoutCancel(ctx), op, fn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return oops.Code("STORE_UNIT_ABANDONED").With("op", op).Wrap(ctx.Err())
	}
}

func (p *Pool) run(ctx context.Context, op string, fn UnitFunc) (err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "store."+op, trace.WithAttributes(attribute.String("db.operation", op)))

	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("STORE_UNIT_PANIC").With("op", op).Wrap(fmt.Errorf("unit of work panicked: %v", r))
		}
		p.metrics.ObserveStoreUnit(op, outcome(err), time.Since(start))
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome(err))
		}
		span.End()
	}()

	conn, err := p.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	workCtx, cancel := context.WithTimeout(ctx, p.statementTimeout)
	defer cancel()

	tx := p.db.WithContext(workCtx)
	tx.Statement.ConnPool = conn

	return fn(workCtx, tx)
}

func (p *Pool) acquire(ctx context.Context, op string) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.sqlDB.Conn(acquireCtx)
	if err == nil {
		return conn, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		p.metrics.PoolExhausted()
		return nil, oops.Code("STORE_POOL_EXHAUSTED").
			With("op", op).
			With("wait", p.acquireTimeout.String()).
			Wrap(domain.ErrPoolExhausted)
	}

	return nil, oops.Code("STORE_ACQUIRE_FAILED").With("op", op).Wrap(err)
}

// Ping checks that a connection can be leased and used.
func (p *Pool) Ping(ctx context.Context) error {
	return p.Do(ctx, "ping", func(ctx context.Context, tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	})
}

// Close waits for running units of work, bounded by ctx, and closes the
// underlying connections.
func (p *Pool) Close(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
	}

	return p.sqlDB.Close()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPoolExhausted):
		return "exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
