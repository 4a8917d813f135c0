package repository

import (
	"context"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/google/uuid"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

type BookRepository interface {
	List(ctx context.Context) ([]*domain.Book, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	Create(ctx context.Context, book *domain.Book) error
	Update(ctx context.Context, id uuid.UUID, patch domain.BookPatch) (*domain.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repositories struct {
	Account AccountRepository
	Book    BookRepository
}
