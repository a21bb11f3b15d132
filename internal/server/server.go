// Package server exposes the invoice data layer as a small JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"restodash/internal/export"
	"restodash/internal/invoices"
	"restodash/internal/logger"
	"restodash/internal/suppliers"
	"restodash/pkg/models"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Deps are the services behind the endpoints. Verifier is optional.
type Deps struct {
	Lister    *invoices.Lister
	Details   *invoices.DetailLoader
	Editor    *invoices.Editor
	Verifier  *invoices.Verifier
	Exporter  *export.Exporter
	Suppliers *suppliers.Service

	// EstablishmentID is used when a request does not name one.
	EstablishmentID string
	// ExportDir receives the files of local exports.
	ExportDir string
	// RateLimit is the number of requests allowed per client and minute.
	RateLimit int
}

// Server routes HTTP requests to the invoice services.
type Server struct {
	deps    Deps
	router  chi.Router
	metrics *metrics
	log     zerolog.Logger

	mu     sync.Mutex
	stores map[string]*invoices.Store
}

// New creates a server and mounts its routes.
func New(deps Deps) *Server {
	s := &Server{
		deps:    deps,
		router:  chi.NewRouter(),
		metrics: newMetrics(),
		log:     logger.WithComponent("server"),
		stores:  make(map[string]*invoices.Store),
	}
	s.routes()
	return s
}

// store returns the invoice table of an establishment, creating it on first use.
func (s *Server) store(establishmentID string) *invoices.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[establishmentID]
	if !ok {
		st = invoices.NewStore(s.deps.Lister, invoices.Query{EstablishmentID: establishmentID})
		s.stores[establishmentID] = st
	}
	return st
}

// applyInvoice patches the cached row of invoice in every loaded table.
func (s *Server) applyInvoice(invoice models.Invoice) (invoices.ListItem, bool) {
	s.mu.Lock()
	stores := make([]*invoices.Store, 0, len(s.stores))
	for _, st := range s.stores {
		stores = append(stores, st)
	}
	s.mu.Unlock()

	var (
		row   invoices.ListItem
		found bool
	)
	for _, st := range stores {
		if item, ok := st.Apply(invoice); ok {
			row, found = item, true
		}
	}
	return row, found
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.metrics.instrument)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	if s.deps.RateLimit > 0 {
		r.Use(httprate.Limit(s.deps.RateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, http.StatusTooManyRequests, "Trop de requêtes, réessayez dans une minute.", nil)
			}),
		))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", s.listInvoices)
		r.Post("/export", s.exportInvoices)
		r.Get("/{id}", s.showInvoice)
		r.Get("/{id}/check", s.checkInvoice)
		r.Patch("/{id}/totals", s.updateTotals)
	})
	r.Patch("/articles/{id}", s.updateArticle)

	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", s.listSuppliers)
		r.Patch("/{id}/label", s.updateSupplierLabel)
		r.Patch("/{id}/market", s.linkMarketSupplier)
		r.Get("/merges", s.listMerges)
		r.Post("/merges", s.requestMerge)
		r.Post("/merges/{id}", s.resolveMerge)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		log := logger.WithRequestID(s.log, chimw.GetReqID(r.Context()))

		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	const op = "server.ListenAndServe"

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}
	return nil
}
