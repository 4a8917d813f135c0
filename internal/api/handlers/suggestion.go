package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dom/bookshelf-api/internal/booksuggest"
)

// SuggestionResponse carries the title under both "title" and "book" so
// clients of the older payload keep working.
type SuggestionResponse struct {
	Title  string `json:"title"`
	Book   string `json:"book"`
	Author string `json:"author"`
}

type SuggestionHandler struct {
	suggester *booksuggest.Client
}

func NewSuggestionHandler(suggester *booksuggest.Client) *SuggestionHandler {
	return &SuggestionHandler{suggester: suggester}
}

func (h *SuggestionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	suggestion, err := h.suggester.Suggest(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, booksuggest.ErrNotConfigured):
			http.Error(w, "Book generation is not configured", http.StatusServiceUnavailable)
		case errors.Is(err, booksuggest.ErrUpstream), errors.Is(err, booksuggest.ErrBadSuggestion):
			slog.WarnContext(r.Context(), "book generation failed", "error", err)
			http.Error(w, "Book generation failed", http.StatusBadGateway)
		default:
			writeError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, SuggestionResponse{
		Title:  suggestion.Title,
		Book:   suggestion.Title,
		Author: suggestion.Author,
	})
}
