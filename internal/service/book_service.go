package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/repository"
)

const bookFieldRules = "required,max=512"

type BookService struct {
	books repository.BookRepository
}

func NewBookService(books repository.BookRepository) *BookService {
	return &BookService{books: books}
}

type CreateBookInput struct {
	Title  string `validate:"required,max=512"`
	Author string `validate:"required,max=512"`
}

func (s *BookService) List(ctx context.Context) ([]*domain.Book, error) {
	return s.books.List(ctx)
}

func (s *BookService) Get(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *BookService) Create(ctx context.Context, input CreateBookInput) (*domain.Book, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	book := &domain.Book{Title: input.Title, Author: input.Author}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Update sets only the fields present in patch.
func (s *BookService) Update(ctx context.Context, id uuid.UUID, patch domain.BookPatch) (*domain.Book, error) {
	if patch.Title != nil {
		title, err := bookField("title", *patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Author != nil {
		author, err := bookField("author", *patch.Author)
		if err != nil {
			return nil, err
		}
		patch.Author = &author
	}

	return s.books.Update(ctx, id, patch)
}

func (s *BookService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.books.Delete(ctx, id)
}

func bookField(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := validateField(name, value, bookFieldRules); err != nil {
		return "", err
	}
	return value, nil
}
