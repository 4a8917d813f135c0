package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dom/bookshelf-api/internal/domain"
)

type bookRepository struct {
	pool *Pool
}

func NewBookRepository(pool *Pool) *bookRepository {
	return &bookRepository{pool: pool}
}

func (r *bookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	const op = "books.list"

	var books []*domain.Book
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		return storeError(op, tx.Order("title").Find(&books).Error)
	})
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []*domain.Book{}
	}
	return books, nil
}

func (r *bookRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	const op = "books.get_by_id"

	var book domain.Book
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		return storeError(op, tx.First(&book, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	const op = "books.create"

	row := *book
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		return storeError(op, tx.Create(&row).Error)
	})
	if err != nil {
		return err
	}

	*book = row
	return nil
}

// Update applies the present fields of patch in a single statement and
// returns the stored row. An empty patch reads the row without writing.
func (r *bookRepository) Update(ctx context.Context, id uuid.UUID, patch domain.BookPatch) (*domain.Book, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	const op = "books.update"

	book := domain.Book{ID: id}
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.Model(&book).Clauses(clause.Returning{}).Updates(patch.Columns())
		if res.Error != nil {
			return storeError(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "books.delete"

	return r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.Delete(&domain.Book{}, "id = ?", id)
		if res.Error != nil {
			return storeError(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
