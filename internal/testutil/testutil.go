package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dom/bookshelf-api/internal/api"
	"github.com/dom/bookshelf-api/internal/config"
	"github.com/dom/bookshelf-api/internal/metrics"
	"github.com/dom/bookshelf-api/internal/repository"
	repoPostgres "github.com/dom/bookshelf-api/internal/repository/postgres"
	"github.com/dom/bookshelf-api/internal/service"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated
// connection. The test is skipped in -short mode.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:16-alpine",
		tcPostgres.WithDatabase("test_bookshelf"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	testDB.DSN = dsn

	testDB.DB = OpenDB(t, dsn)

	if err := repoPostgres.Migrate(ctx, testDB.DB); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// OpenDB opens an independent connection set to dsn, closed at test end.
func OpenDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// NewPool builds a connection pool over a fresh connection set to the test
// database, so pool limits do not leak between tests.
func (tdb *TestDB) NewPool(t *testing.T, cfg repoPostgres.PoolConfig) *repoPostgres.Pool {
	t.Helper()

	pool, err := repoPostgres.NewPool(OpenDB(t, tdb.DSN), cfg, nil)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool
}

// DefaultPoolConfig mirrors the production defaults.
func DefaultPoolConfig() repoPostgres.PoolConfig {
	return repoPostgres.PoolConfig{
		MaxConns:         10,
		AcquireTimeout:   3 * time.Second,
		StatementTimeout: 5 * time.Second,
	}
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range []string{"books", "accounts"} {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:               "0", // Random port
		Environment:        "test",
		LogFormat:          "text",
		LogLevel:           "debug",
		DatabaseURL:        "postgres://unused",
		DBMaxConns:         4,
		DBAcquireTimeout:   time.Second,
		DBStatementTimeout: 2 * time.Second,
		DBConnectRetries:   0,
		JWTSecret:          "test-jwt-secret-key-for-testing-only",
		HashConcurrency:    2,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	Store    *MemoryStore
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Metrics  *metrics.Metrics
	Config   *config.Config
}

// NewTestServer creates a test server backed by an in-memory store. opts
// adjust the configuration before the services are built.
func NewTestServer(t *testing.T, opts ...func(*config.Config)) *TestServer {
	t.Helper()

	cfg := TestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	store := NewMemoryStore()
	ts := newTestServer(t, store.Repositories(), cfg)
	ts.Store = store
	return ts
}

// NewPostgresTestServer creates a test server backed by a PostgreSQL
// container.
func NewPostgresTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	pool := testDB.NewPool(t, DefaultPoolConfig())

	ts := newTestServer(t, repoPostgres.NewRepositories(pool), TestConfig())
	ts.DB = testDB
	return ts
}

func newTestServer(t *testing.T, repos *repository.Repositories, cfg *config.Config) *TestServer {
	t.Helper()

	m := metrics.New()
	services := service.NewServices(repos, cfg, m)
	router := api.NewRouter(services, m)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
	})

	return &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Metrics:  m,
		Config:   cfg,
	}
}

// URL returns the full URL for a given path
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}
