package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"

	"github.com/dom/bookshelf-api/internal/auth"
	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/metrics"
	"github.com/dom/bookshelf-api/internal/repository"
)

// maxPasswordLen bounds the secret fed to the hasher, in bytes.
const maxPasswordLen = 1024

// dummyPasswordHash is verified against when no account matches the email so
// that unknown and known emails cost the same. It matches no password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type AccountService struct {
	accounts  repository.AccountRepository
	hasher    auth.PasswordHasher
	tokens    *auth.TokenCodec
	hashSlots *semaphore.Weighted
	metrics   *metrics.Metrics
}

func NewAccountService(
	accounts repository.AccountRepository,
	hasher auth.PasswordHasher,
	tokens *auth.TokenCodec,
	hashConcurrency int,
	m *metrics.Metrics,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		hashSlots: semaphore.NewWeighted(int64(max(hashConcurrency, 1))),
		metrics:   m,
	}
}

type RegisterInput struct {
	Username string `validate:"required,max=64"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=1024"`
}

type LoginInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required"`
}

type AuthResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if len(input.Password) > maxPasswordLen {
		return nil, validationError("password", "is too long")
	}

	secret := []byte(input.Password)
	defer clear(secret)

	var hash string
	err := s.withHashSlot(ctx, func() error {
		var hashErr error
		hash, hashErr = s.hasher.Hash(secret)
		return hashErr
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	account := &domain.Account{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "persist account").Wrap(err)
	}

	slog.InfoContext(ctx, "account registered", "account_id", account.ID)

	return s.issue(account)
}

// Login verifies the credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if len(input.Password) > maxPasswordLen {
		return nil, invalidCredentials()
	}

	account, lookupErr := s.accounts.GetByEmail(ctx, input.Email)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case errors.Is(lookupErr, domain.ErrNotFound):
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get account by email").Wrap(lookupErr)
	}

	secret := []byte(input.Password)
	defer clear(secret)

	var valid bool
	var verifyErr error
	err := s.withHashSlot(ctx, func() error {
		valid, verifyErr = s.hasher.Verify(secret, targetHash)
		return nil
	})
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(err)
	}

	if verifyErr != nil {
		if exists {
			slog.ErrorContext(ctx, "stored password hash unreadable", "account_id", account.ID, "error", verifyErr)
		}
		return nil, invalidCredentials()
	}

	if !exists || !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		slog.InfoContext(ctx, "account uses a legacy password hash", "account_id", account.ID)
	}

	return s.issue(account)
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *AccountService) issue(account *domain.Account) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Account:   account,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// withHashSlot runs fn once a hashing slot is free. Waiting honours ctx.
func (s *AccountService) withHashSlot(ctx context.Context, fn func() error) error {
	start := time.Now()
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.hashSlots.Release(1)

	s.metrics.ObserveHashWait(time.Since(start))

	return fn()
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(domain.ErrInvalidCredentials)
}
