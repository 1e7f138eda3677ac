package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/services"
	"estate-sync/storage"
	"estate-sync/utils"
)

// Server exposes the catalog over HTTP.
type Server struct {
	catalog *services.Catalog
	syncer  *services.Syncer
	logger  *utils.Logger
	router  *mux.Router
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithSyncCooldown allows at most one triggered sync per d. Zero disables
// the limit.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New builds a Server. syncer may be nil, in which case POST /api/sync
// answers 503.
func New(catalog *services.Catalog, syncer *services.Syncer, logger *utils.Logger, opts ...Option) *Server {
	s := &Server{
		catalog: catalog,
		syncer:  syncer,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/listings", s.handleListings).Methods(http.MethodGet)
	r.HandleFunc("/api/sources", s.handleSources).Methods(http.MethodGet)
	r.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/api/export", s.handleExport).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("[server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type listingsResponse struct {
	Listings []*models.Listing `json:"listings"`
	Count    int               `json:"count"`
	Sources  []string          `json:"sources"`
	Notice   string            `json:"notice,omitempty"`
	LastRun  *time.Time        `json:"lastRun,omitempty"`
}

type syncResponse struct {
	RunID     string   `json:"runId"`
	Received  int      `json:"received"`
	Skipped   int      `json:"skipped"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
	Notice    string   `json:"notice"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Notice string `json:"notice,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok", "store": "available"}
	if !s.catalog.Available() {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = "unavailable"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	view := s.catalog.Snapshot()

	q := r.URL.Query()
	listings := services.FilterBySource(view.Listings, q.Get("source"))
	if raw := q.Get("fresh"); raw != "" {
		fresh, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.NewValidationError("fresh", raw, "must be a boolean"))
			return
		}
		if fresh {
			listings = services.FreshOnly(listings)
		}
	}

	resp := listingsResponse{
		Listings: listings,
		Count:    len(listings),
		Sources:  view.Sources,
		Notice:   view.Notice,
	}
	if resp.Listings == nil {
		resp.Listings = []*models.Listing{}
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	if !view.LastRun.IsZero() {
		resp.LastRun = &view.LastRun
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources := s.catalog.Snapshot().Sources
	if sources == nil {
		sources = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		s.writeError(w, http.StatusServiceUnavailable, apperrors.NewConfigurationError("webhook", "WEBHOOK_URL is not set", nil))
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter().Seconds())+1))
		s.writeError(w, http.StatusTooManyRequests, apperrors.New("a sync was triggered recently, try again later"))
		return
	}

	report, err := s.syncer.Sync(r.Context())
	if report == nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	resp := syncResponse{
		RunID:     report.RunID,
		Received:  report.Received,
		Skipped:   len(report.Skipped),
		Inserted:  report.Inserted,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Notice:    report.Notice(),
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}

	status := http.StatusOK
	switch {
	case report.Unavailable != nil:
		status = http.StatusServiceUnavailable
	case report.Failed():
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = services.ScopeAll
	}
	listings, err := services.SelectScope(s.catalog.Snapshot().Listings, scope)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.ExportFileName(scope, s.now())+`"`)

	cw, err := storage.NewCSVStreamWriter(w)
	if err != nil {
		s.logger.Error("[server] CSV export failed: %v", err)
		return
	}
	if err := cw.Export(listings); err != nil {
		s.logger.Error("[server] CSV export failed: %v", err)
	}
	if err := cw.Close(); err != nil {
		s.logger.Error("[server] CSV export failed: %v", err)
	}
}

func (s *Server) retryAfter() time.Duration {
	r := s.limiter.Reserve()
	defer r.Cancel()
	return r.Delay()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("[server] Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Notice: s.catalog.Snapshot().Notice})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("[server] %s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
