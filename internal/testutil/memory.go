package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository"
)

// MemoryStore is an in-memory implementation of the repositories that counts
// every call it receives. Tests use the counters to prove that a request was
// rejected before reaching the store.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
	books    map[uuid.UUID]domain.Book
	calls    map[string]int
	failWith error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]domain.Account),
		books:    make(map[uuid.UUID]domain.Book),
		calls:    make(map[string]int),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *MemoryStore) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Account: &memoryAccountRepository{store: s},
		Book:    &memoryBookRepository{store: s},
	}
}

// FailWith makes every subsequent call return err. nil restores normal
// behaviour.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Calls returns the number of calls made to op, e.g. "books.list".
func (s *MemoryStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of calls made to any operation.
func (s *MemoryStore) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// enter records the call and must be paired with s.mu.Unlock.
func (s *MemoryStore) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failWith
}

type memoryAccountRepository struct {
	store *MemoryStore
}

func (r *memoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "accounts.create"); err != nil {
		return err
	}

	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return domain.ErrDuplicateEmail
		}
	}

	account.ID = uuid.New()
	account.CreatedAt = time.Now().UTC()
	s.accounts[account.ID] = *account
	return nil
}

func (r *memoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "accounts.get_by_id"); err != nil {
		return nil, err
	}

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

func (r *memoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "accounts.get_by_email"); err != nil {
		return nil, err
	}

	for _, account := range s.accounts {
		if account.Email == email {
			return &account, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memoryBookRepository struct {
	store *MemoryStore
}

func (r *memoryBookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "books.list"); err != nil {
		return nil, err
	}

	books := make([]*domain.Book, 0, len(s.books))
	for _, book := range s.books {
		books = append(books, &book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

func (r *memoryBookRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "books.get_by_id"); err != nil {
		return nil, err
	}

	book, ok := s.books[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &book, nil
}

func (r *memoryBookRepository) Create(ctx context.Context, book *domain.Book) error {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "books.create"); err != nil {
		return err
	}

	book.ID = uuid.New()
	s.books[book.ID] = *book
	return nil
}

func (r *memoryBookRepository) Update(ctx context.Context, id uuid.UUID, patch domain.BookPatch) (*domain.Book, error) {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "books.update"); err != nil {
		return nil, err
	}

	book, ok := s.books[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !patch.IsEmpty() {
		patch.Apply(&book)
		s.books[id] = book
	}
	return &book, nil
}

func (r *memoryBookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	s := r.store
	defer s.mu.Unlock()
	if err := s.enter(ctx, "books.delete"); err != nil {
		return err
	}

	if _, ok := s.books[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.books, id)
	return nil
}
