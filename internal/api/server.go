// Package api exposes the games over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/analysis"
	"github.com/MJE43/minigames/internal/auth"
	"github.com/MJE43/minigames/internal/config"
	"github.com/MJE43/minigames/internal/session"
	"github.com/MJE43/minigames/internal/store"
)

const (
	maxBodyBytes   = 1 << 20
	maxScriptBytes = 64 << 10
	requestTimeout = 60 * time.Second
)

// History is the completed-game ledger. *store.Store satisfies it.
type History interface {
	ListResults(ctx context.Context, q store.Query) ([]store.Result, int, error)
	DeleteAll(ctx context.Context) (int64, error)
	ExportCSV(ctx context.Context, w io.Writer, game string) error
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. History may be nil when no
// database is configured.
type Options struct {
	Sessions    *session.Manager
	History     History
	Analyzer    *analysis.Analyzer
	Games       config.Games
	AdminToken  string
	CORSOrigins []string
	Logger      *log.Logger
}

// Server handles HTTP requests.
type Server struct {
	sessions     *session.Manager
	history      History
	analyzer     *analysis.Analyzer
	games        config.Games
	adminToken   string
	corsOrigins  []string
	errorHandler *ErrorHandler
	logger       *log.Logger
	startTime    time.Time
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		sessions:     opts.Sessions,
		history:      opts.History,
		analyzer:     opts.Analyzer,
		games:        opts.Games,
		adminToken:   opts.AdminToken,
		corsOrigins:  origins,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Minigames-Version"},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", s.handleListGames)

		r.Route("/lottery", func(r chi.Router) {
			r.Post("/", s.handleCreateLottery)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetLottery)
				r.Delete("/", s.handleDeleteLottery)
				r.Post("/reveal", s.handleReveal)
				r.Post("/reset", s.handleResetLottery)
				r.Post("/autoplay", s.handleAutoplay)
				r.Get("/board.png", s.handleLotteryBoard)
			})
		})

		r.Route("/race", func(r chi.Router) {
			r.Post("/", s.handleCreateRace)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRace)
				r.Delete("/", s.handleDeleteRace)
				r.Post("/start", s.handleStartRace)
				r.Post("/reset", s.handleResetRace)
				r.Get("/track.png", s.handleRaceTrack)
			})
		})

		r.Get("/history", s.handleListHistory)
		r.Get("/history/export.csv", s.handleExportHistory)
		r.With(s.requireAdmin).Delete("/history", s.handleDeleteHistory)

		r.Post("/analysis/race", s.handleRaceAnalysis)
	})

	return r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.WithFields(log.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	})
}

// requireAdmin guards destructive endpoints with the admin bearer token.
// With no token configured the endpoint is disabled.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			s.errorHandler.HandleStatus(w, r, http.StatusForbidden, ErrTypeUnauthorized, "Admin token not configured")
			return
		}
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !auth.Matches(s.adminToken, strings.TrimSpace(presented)) {
			s.errorHandler.HandleStatus(w, r, http.StatusUnauthorized, ErrTypeUnauthorized, "Invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Minigames-Version", Version)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Minigames-Version", Version)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WithError(err).Debug("Failed to write image")
	}
}

// decodeJSON reads a single JSON object. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return NewError(ErrTypeInvalidBody, fmt.Sprintf("Invalid request body: %v", err)).
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("path", r.URL.Path).
			Build()
	}
	return nil
}
