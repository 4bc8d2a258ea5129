package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/render"
	"github.com/MJE43/minigames/internal/scripting"
	"github.com/MJE43/minigames/internal/session"
)

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:   games.ListGames(),
		Version: Version,
	})
}

// sessionID parses the {id} path parameter, writing a validation error when it
// is not a UUID.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "id", "session id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) lotterySession(w http.ResponseWriter, r *http.Request) (*session.LotterySession, bool) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.sessions.Lottery(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateLottery(w http.ResponseWriter, r *http.Request) {
	var req CreateLotteryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	total, winning := s.games.Lottery.TotalCards, s.games.Lottery.WinningCards
	if req.TotalCards != nil {
		total = *req.TotalCards
	}
	if req.WinningCards != nil {
		winning = *req.WinningCards
	}

	sess, err := s.sessions.CreateLottery(total, winning)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetLottery(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lotterySession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteLottery(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.DeleteLottery(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lotterySession(w, r)
	if !ok {
		return
	}
	var req RevealRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if req.CardID == nil {
		s.errorHandler.HandleValidationError(w, r, "card_id", "card_id is required")
		return
	}

	res, err := sess.Reveal(*req.CardID)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResetLottery(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lotterySession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Reset()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lotterySession(w, r)
	if !ok {
		return
	}
	var req AutoplayRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Script == "" {
		s.errorHandler.HandleValidationError(w, r, "script", "script is required")
		return
	}
	if len(req.Script) > maxScriptBytes {
		s.errorHandler.HandleValidationError(w, r, "script", "script is too large")
		return
	}

	res, err := scripting.Autoplay(r.Context(), sess, req.Script)
	if err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil {
			s.errorHandler.HandleError(w, r, ctxErr)
			return
		}
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrClosed) {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		apiErr := NewError(ErrTypeScript, err.Error()).
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("steps", res.Steps).
			WithContext("logs", res.Logs).
			Build()
		s.errorHandler.logError(r, apiErr, http.StatusUnprocessableEntity)
		s.errorHandler.writeErrorResponse(w, http.StatusUnprocessableEntity, apiErr)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLotteryBoard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lotterySession(w, r)
	if !ok {
		return
	}
	data, err := render.LotteryBoard(sess.Snapshot().Cards)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writePNG(w, data)
}
