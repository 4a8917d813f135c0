package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository/postgres"
	"github.com/dom/bookshelf-api/internal/testutil"
)

func TestAccountRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewAccountRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	account := &domain.Account{
		Username:     "reader",
		Email:        "reader@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$ZGlnZXN0",
	}
	require.NoError(t, repo.Create(ctx, account))

	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.WithinDuration(t, time.Now(), account.CreatedAt, time.Minute)

	got, err := repo.GetByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, account.PasswordHash, got.PasswordHash)

	got, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "reader", got.Username)
}

func TestAccountRepository_DuplicateEmail(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewAccountRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	existing, _ := testutil.NewAccountBuilder().WithEmail("taken@example.com").Build(t, repo)

	dup := &domain.Account{Username: "other", Email: "taken@example.com", PasswordHash: "x"}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	got, err := repo.GetByEmail(ctx, "taken@example.com")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID, "original account is untouched")
}

func TestAccountRepository_NotFound(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewAccountRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
