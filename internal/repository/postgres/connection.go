package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository"
)

// NewConnection opens the store, retrying with exponential backoff while the
// server is not reachable, and creates missing tables.
func NewConnection(ctx context.Context, databaseURL string, retries int) (*gorm.DB, error) {
	var db *gorm.DB

	backoff := retry.NewExponential(500 * time.Millisecond)
	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	backoff = retry.WithMaxRetries(uint64(max(retries, 0)), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			Logger: newGormLogger(),
		})
		if err != nil {
			slog.WarnContext(ctx, "database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_CONNECT").With("attempts", attempt).Wrap(err)
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the accounts and books tables if they do not exist.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&domain.Account{}, &domain.Book{}); err != nil {
		return oops.Code("STORE_MIGRATE").Wrap(err)
	}
	return nil
}

func newGormLogger() logger.Interface {
	return logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

func NewRepositories(pool *Pool) *repository.Repositories {
	return &repository.Repositories{
		Account: NewAccountRepository(pool),
		Book:    NewBookRepository(pool),
	}
}
