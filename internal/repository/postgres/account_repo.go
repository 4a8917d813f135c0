package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/dom/bookshelf-api/internal/domain"
)

type accountRepository struct {
	pool *Pool
}

func NewAccountRepository(pool *Pool) *accountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const op = "accounts.create"

	row := *account
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		err := tx.Create(&row).Error
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE_EMAIL").With("op", op).Wrap(domain.ErrDuplicateEmail)
		}
		return storeError(op, err)
	})
	if err != nil {
		return err
	}

	*account = row
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	const op = "accounts.get_by_id"

	var account domain.Account
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		return storeError(op, tx.First(&account, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const op = "accounts.get_by_email"

	var account domain.Account
	err := r.pool.Do(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		return storeError(op, tx.First(&account, "email = ?", email).Error)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}
