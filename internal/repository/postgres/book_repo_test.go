package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository/postgres"
	"github.com/dom/bookshelf-api/internal/testutil"
)

func ptr(s string) *string { return &s }

func TestBookRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	book := &domain.Book{Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, repo.Create(ctx, book))

	assert.NotEqual(t, uuid.Nil, book.ID, "store assigns the id")

	got, err := repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)
}

func TestBookRepository_GetByID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	book := testutil.NewBookBuilder().Build(t, repo)

	tests := []struct {
		name    string
		id      uuid.UUID
		wantErr error
	}{
		{
			name: "existing book",
			id:   book.ID,
		},
		{
			name:    "non-existent book",
			id:      uuid.New(),
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByID(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, book.ID, got.ID)
		})
	}
}

func TestBookRepository_List(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	books, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, books, "empty store lists as an empty slice")
	assert.Empty(t, books)

	testutil.NewBookBuilder().WithTitle("B").Build(t, repo)
	testutil.NewBookBuilder().WithTitle("A").Build(t, repo)

	books, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A", books[0].Title)
	assert.Equal(t, "B", books[1].Title)
}

func TestBookRepository_Update(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	tests := []struct {
		name       string
		patch      domain.BookPatch
		wantTitle  string
		wantAuthor string
	}{
		{
			name:       "title only",
			patch:      domain.BookPatch{Title: ptr("New Title")},
			wantTitle:  "New Title",
			wantAuthor: "Original Author",
		},
		{
			name:       "author only",
			patch:      domain.BookPatch{Author: ptr("New Author")},
			wantTitle:  "Original Title",
			wantAuthor: "New Author",
		},
		{
			name:       "both fields",
			patch:      domain.BookPatch{Title: ptr("T"), Author: ptr("A")},
			wantTitle:  "T",
			wantAuthor: "A",
		},
		{
			name:       "empty patch",
			patch:      domain.BookPatch{},
			wantTitle:  "Original Title",
			wantAuthor: "Original Author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := testutil.NewBookBuilder().
				WithTitle("Original Title").
				WithAuthor("Original Author").
				Build(t, repo)

			got, err := repo.Update(ctx, book.ID, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, book.ID, got.ID)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantAuthor, got.Author)

			stored, err := repo.GetByID(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, got, stored)
		})
	}
}

func TestBookRepository_UpdateMissing(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	other := testutil.NewBookBuilder().WithTitle("Untouched").Build(t, repo)

	_, err := repo.Update(ctx, uuid.New(), domain.BookPatch{Title: ptr("X")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Update(ctx, uuid.New(), domain.BookPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	books, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, other, books[0])
}

func TestBookRepository_Delete(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBookRepository(testDB.NewPool(t, testutil.DefaultPoolConfig()))
	ctx := context.Background()

	book := testutil.NewBookBuilder().Build(t, repo)

	require.NoError(t, repo.Delete(ctx, book.ID))

	_, err := repo.GetByID(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Delete(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "second delete finds nothing")
}
