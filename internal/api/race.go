package api

import (
	"net/http"
	"strconv"

	"github.com/MJE43/minigames/internal/render"
	"github.com/MJE43/minigames/internal/session"
)

const (
	defaultImageWidth  = 800
	defaultImageHeight = 400
)

func (s *Server) raceSession(w http.ResponseWriter, r *http.Request) (*session.RaceSession, bool) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.sessions.Race(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req CreateRaceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Count < 0 {
		s.errorHandler.HandleValidationError(w, r, "count", "count must not be negative")
		return
	}

	width := s.games.Race.TrackWidth
	if req.TrackWidth != nil {
		width = *req.TrackWidth
	}
	names := make([]string, len(req.Horses))
	for i, h := range req.Horses {
		names[i] = h.Name
	}

	sess, err := s.sessions.CreateRace(session.RaceConfig{
		Count:      req.Count,
		Names:      names,
		TrackWidth: width,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetRace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.raceSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteRace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.DeleteRace(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartRace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.raceSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Start()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResetRace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.raceSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Reset())
}

func (s *Server) handleRaceTrack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.raceSession(w, r)
	if !ok {
		return
	}
	width, ok := s.intQuery(w, r, "w", defaultImageWidth)
	if !ok {
		return
	}
	height, ok := s.intQuery(w, r, "h", defaultImageHeight)
	if !ok {
		return
	}

	snap := sess.Snapshot()
	data, err := render.RaceTrack(render.RaceView{
		TrackWidth:  snap.TrackWidth,
		Horses:      snap.Field,
		FinishOrder: snap.FinishOrder,
	}, width, height)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "size", err.Error())
		return
	}
	s.writePNG(w, data)
}

// intQuery reads an optional integer query parameter.
func (s *Server) intQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, name, name+" must be an integer")
		return 0, false
	}
	return v, true
}
