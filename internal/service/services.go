package service

import (
	"github.com/dom/bookshelf-api/internal/auth"
	"github.com/dom/bookshelf-api/internal/booksuggest"
	"github.com/dom/bookshelf-api/internal/config"
	"github.com/dom/bookshelf-api/internal/metrics"
	"github.com/dom/bookshelf-api/internal/repository"
)

type Services struct {
	Account *AccountService
	Book    *BookService
	Suggest *booksuggest.Client
	Tokens  *auth.TokenCodec
}

func NewServices(repos *repository.Repositories, cfg *config.Config, m *metrics.Metrics) *Services {
	tokens := auth.NewTokenCodec([]byte(cfg.JWTSecret), auth.SessionTTL)

	return &Services{
		Account: NewAccountService(repos.Account, auth.NewArgon2idHasher(), tokens, cfg.HashConcurrency, m),
		Book:    NewBookService(repos.Book),
		Suggest: booksuggest.NewClient(booksuggest.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		}),
		Tokens: tokens,
	}
}
