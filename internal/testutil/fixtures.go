package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dom/bookshelf-api/internal/auth"
	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository"
)

// AccountBuilder creates test accounts with a builder pattern
type AccountBuilder struct {
	username string
	email    string
	password string
}

// NewAccountBuilder creates a new AccountBuilder with unique default values
func NewAccountBuilder() *AccountBuilder {
	suffix := uuid.New().String()[:8]
	return &AccountBuilder{
		username: "reader_" + suffix,
		email:    fmt.Sprintf("reader_%s@example.com", suffix),
		password: "correct horse battery staple",
	}
}

func (b *AccountBuilder) WithUsername(username string) *AccountBuilder {
	b.username = username
	return b
}

func (b *AccountBuilder) WithEmail(email string) *AccountBuilder {
	b.email = email
	return b
}

func (b *AccountBuilder) WithPassword(password string) *AccountBuilder {
	b.password = password
	return b
}

// Build stores the account through repo and returns it with the raw password
func (b *AccountBuilder) Build(t *testing.T, repo repository.AccountRepository) (*domain.Account, string) {
	t.Helper()

	hash, err := auth.NewArgon2idHasher().Hash([]byte(b.password))
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	account := &domain.Account{
		Username:     b.username,
		Email:        b.email,
		PasswordHash: hash,
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	Account struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"account"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BuildAndAuthenticate registers the account via the API and returns the
// response, including its session token
func (b *AccountBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) *AuthResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": b.username,
		"email":    b.email,
		"password": b.password,
	})

	resp, err := http.Post(ts.URL("/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register account: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	return &authResp
}

// BookBuilder creates test books
type BookBuilder struct {
	title  string
	author string
}

// NewBookBuilder creates a new BookBuilder with default values
func NewBookBuilder() *BookBuilder {
	return &BookBuilder{
		title:  "Book " + uuid.New().String()[:8],
		author: "Test Author",
	}
}

func (b *BookBuilder) WithTitle(title string) *BookBuilder {
	b.title = title
	return b
}

func (b *BookBuilder) WithAuthor(author string) *BookBuilder {
	b.author = author
	return b
}

// Build stores the book through repo
func (b *BookBuilder) Build(t *testing.T, repo repository.BookRepository) *domain.Book {
	t.Helper()

	book := &domain.Book{Title: b.title, Author: b.author}
	if err := repo.Create(context.Background(), book); err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	return book
}
