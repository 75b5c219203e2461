// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/poiesic/bookgrep/config"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/search"
	"golang.org/x/time/rate"
)

// Library is what the server needs from the book collection.
type Library interface {
	Search(ctx context.Context, q core.Query, monitor search.SearchMonitor) ([]*core.SearchResult, error)
	ListBooks(ctx context.Context, page, limit int) ([]*core.Book, int, error)
	GetBook(ctx context.Context, id core.ID) (*core.Book, error)
	Len() int
}

// Server is the HTTP front end of a Library.
type Server struct {
	lib     Library
	cfg     config.ServerConfig
	limiter *rate.Limiter
	handler http.Handler
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewServer creates a server for lib. A zero cfg.RateLimit disables rate limiting.
func NewServer(lib Library, cfg config.ServerConfig, opts ...Option) (*Server, error) {
	if lib == nil {
		return nil, ErrLibraryRequired
	}
	if cfg.DefaultPageSize < 1 {
		return nil, fmt.Errorf("default page size must be positive, got %d", cfg.DefaultPageSize)
	}

	s := &Server{
		lib:    lib,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/books/search-books", s.rateLimit(http.HandlerFunc(s.handleSearch)))
	mux.HandleFunc("GET /api/books/books", s.handleList)
	mux.HandleFunc("GET /api/books/book/{id}", s.handleGet)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = s.recoverPanics(h)
	h = s.cors(h)
	h = s.accessLog(h)
	h = requestID(h)
	return h
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully,
// waiting at most the configured shutdown timeout for open requests.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logger.Info("http server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
