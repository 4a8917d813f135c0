package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"

	"github.com/dom/bookshelf-api/internal/api/handlers"
	"github.com/dom/bookshelf-api/internal/api/middleware"
	"github.com/dom/bookshelf-api/internal/metrics"
	"github.com/dom/bookshelf-api/internal/service"
)

func NewRouter(services *service.Services, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Trace(otel.GetTracerProvider()))
	r.Use(middleware.RequestLogger(m))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Works"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	authHandler := handlers.NewAuthHandler(services.Account)
	bookHandler := handlers.NewBookHandler(services.Book)
	suggestionHandler := handlers.NewSuggestionHandler(services.Suggest)

	// Public account routes
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(services.Tokens))

		r.Get("/me", authHandler.Me)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", bookHandler.List)
			r.Post("/", bookHandler.Create)
			r.Get("/{id}", bookHandler.Get)
			r.Patch("/{id}", bookHandler.Update)
			r.Delete("/{id}", bookHandler.Delete)
		})

		r.Post("/generate-book", suggestionHandler.Generate)
	})

	return r
}
