package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/search"
)

// maxBodyBytes bounds a search request body.
const maxBodyBytes = 64 << 10

// SearchRequest is the body of POST /api/books/search-books.
type SearchRequest struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
	// Sort is relevance (default), title, author or date.
	Sort string `json:"sort,omitempty"`
	// Order is asc or desc. Relevance defaults to best first, the rest to ascending.
	Order string `json:"order,omitempty"`
}

// BookSummary is a book without its content, as listed by GET /api/books/books.
type BookSummary struct {
	Id          core.ID   `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ReleaseDate time.Time `json:"releaseDate"`
}

// BookPage is the body of GET /api/books/books.
type BookPage struct {
	Books      []BookSummary `json:"books"`
	TotalBooks int           `json:"totalBooks"`
}

// BookDetail is the body of GET /api/books/book/{id}.
type BookDetail struct {
	BookSummary
	Content string `json:"content"`
}

func summarize(book *core.Book) BookSummary {
	return BookSummary{
		Id:          book.Id,
		Title:       book.Title,
		Author:      book.Author,
		ReleaseDate: book.ReleaseDate,
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed body: %w", errInvalidRequest, err))
		return
	}

	mode, err := core.ParseMode(req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, reverse, err := parseOrdering(req.Sort, req.Order)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pattern, err := s.clampPattern(req.Pattern)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stats := &search.StatsMonitor{}
	results, err := s.lib.Search(r.Context(), core.Query{Pattern: pattern, Mode: mode}, stats)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if key != search.SortRelevance || reverse {
		search.Reorder(results, key, reverse)
	}

	w.Header().Set("X-Scan-Faults", strconv.Itoa(stats.Faults()))
	s.writeJSON(w, http.StatusOK, results)
}

// clampPattern trims p, rejects it if shorter than the minimum and truncates
// it to the maximum length, counting characters rather than bytes.
func (s *Server) clampPattern(p string) (string, error) {
	p = strings.TrimSpace(p)
	n := utf8.RuneCountInString(p)
	if n < s.cfg.MinPatternLength {
		return "", fmt.Errorf("%w: need at least %d characters, got %d",
			errPatternTooShort, s.cfg.MinPatternLength, n)
	}
	if limit := s.cfg.MaxPatternLength; limit > 0 && n > limit {
		p = string([]rune(p)[:limit])
	}
	return p, nil
}

func parseOrdering(sortToken, order string) (search.SortKey, bool, error) {
	key, err := search.ParseSortKey(sortToken)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	switch strings.ToLower(order) {
	case "":
		return key, false, nil
	case "asc":
		return key, key == search.SortRelevance, nil
	case "desc":
		return key, key != search.SortRelevance, nil
	}
	return "", false, fmt.Errorf("%w: order must be asc or desc, got %q", errInvalidRequest, order)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", s.cfg.DefaultPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.cfg.MaxPageSize > 0 {
		limit = min(limit, s.cfg.MaxPageSize)
	}

	books, total, err := s.lib.ListBooks(r.Context(), page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := BookPage{
		Books:      make([]BookSummary, 0, len(books)),
		TotalBooks: total,
	}
	for _, book := range books {
		resp.Books = append(resp.Books, summarize(book))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errInvalidRequest, name, raw)
	}
	return n, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid book id %q", errInvalidRequest, raw))
		return
	}

	book, err := s.lib.GetBook(r.Context(), core.ID(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BookDetail{
		BookSummary: summarize(book),
		Content:     book.Content,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"books":  s.lib.Len(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	switch code {
	case CodeInternal:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"err", err)
	case CodeTimeout:
		s.logger.Warn("request timed out", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()))
	default:
		s.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "err", err)
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
