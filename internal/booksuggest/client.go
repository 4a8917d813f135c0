// Package booksuggest asks a generative language model for a fictional book.
package booksuggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	maxAttempts     = 3
	maxResponseSize = 1 << 20
)

var (
	ErrNotConfigured = errors.New("book suggestions are not configured")
	ErrBadSuggestion = errors.New("model returned an unusable suggestion")
	ErrUpstream      = errors.New("model request failed")
)

const prompt = `Generate a fictional book name and author.
Return ONLY valid JSON in the format:
{
    "book": "Book Name",
    "author": "Author Name"
}
No extra text, no explanation.`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Suggestion is a generated book. It is never persisted.
type Suggestion struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	backoff    time.Duration
}

func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: 250 * time.Millisecond,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Suggest returns one generated book. Transport failures and 5xx responses
// are retried; anything the model says that is not a title and author is
// ErrBadSuggestion.
func (c *Client) Suggest(ctx context.Context) (*Suggestion, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, oops.Code("SUGGEST_ENCODE").Wrap(err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	var text string
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		text, callErr = c.generate(ctx, endpoint, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	return parseSuggestion(text)
}

func (c *Client) generate(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", oops.Code("SUGGEST_REQUEST").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retry.RetryableError(upstream("transport", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", retry.RetryableError(upstream("read body", err))
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", retry.RetryableError(upstream("status", fmt.Errorf("status %d", resp.StatusCode)))
	case resp.StatusCode != http.StatusOK:
		return "", upstream("status", fmt.Errorf("status %d", resp.StatusCode))
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", badSuggestion("response is not JSON: %v", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", badSuggestion("response has no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

func parseSuggestion(text string) (*Suggestion, error) {
	text = stripCodeFence(text)

	var raw struct {
		Book   string `json:"book"`
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, badSuggestion("model output is not JSON: %v", err)
	}

	title := strings.TrimSpace(raw.Book)
	if title == "" {
		title = strings.TrimSpace(raw.Title)
	}
	author := strings.TrimSpace(raw.Author)
	if title == "" || author == "" {
		return nil, badSuggestion("model output lacks a title or author")
	}

	return &Suggestion{Title: title, Author: author}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}

func upstream(stage string, err error) error {
	return oops.Code("SUGGEST_UPSTREAM").With("stage", stage).Wrap(fmt.Errorf("%w: %w", ErrUpstream, err))
}

func badSuggestion(format string, args ...any) error {
	return oops.Code("SUGGEST_BAD_OUTPUT").Wrap(fmt.Errorf("%w: "+format, append([]any{ErrBadSuggestion}, args...)...))
}
