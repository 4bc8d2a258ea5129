package api

import (
	"bytes"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/analysis"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/store"
)

const defaultAnalysisRaces = 1000

func (s *Server) historyEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.history == nil {
		s.errorHandler.HandleStatus(w, r, http.StatusServiceUnavailable, ErrTypeServiceUnavailable, "History is disabled")
		return false
	}
	return true
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w, r) {
		return
	}
	page, ok := s.intQuery(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := s.intQuery(w, r, "per_page", 50)
	if !ok {
		return
	}

	q := store.Query{Game: r.URL.Query().Get("game"), Page: page, PerPage: perPage}
	results, total, err := s.history.ListResults(r.Context(), q)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if results == nil {
		results = []store.Result{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w, r) {
		return
	}
	game := r.URL.Query().Get("game")
	if game != "" {
		if _, ok := games.GetGame(game); !ok {
			s.errorHandler.HandleError(w, r, store.ErrUnknownGame)
			return
		}
	}

	// Buffer so a failed query can still be reported as an error response.
	var buf bytes.Buffer
	if err := s.history.ExportCSV(r.Context(), &buf, game); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="minigames_history.csv"`)
	w.Header().Set("X-Minigames-Version", Version)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WithError(err).Debug("Failed to write export")
	}
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w, r) {
		return
	}
	n, err := s.history.DeleteAll(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logger.WithFields(log.Fields{"deleted": n, "remote_ip": r.RemoteAddr}).Warn("History cleared")
	s.writeJSON(w, http.StatusOK, DeleteHistoryResponse{Deleted: n})
}

func (s *Server) handleRaceAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.errorHandler.HandleStatus(w, r, http.StatusServiceUnavailable, ErrTypeServiceUnavailable, "Analysis is disabled")
		return
	}
	var req analysis.Request
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if req.TrackWidth == 0 {
		req.TrackWidth = s.games.Race.TrackWidth
	}
	if req.Races == 0 {
		req.Races = defaultAnalysisRaces
	}
	if req.Seed == "" {
		req.Seed = uuid.NewString()
	}

	sum, err := s.analyzer.Run(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}
