package api

import (
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/store"
)

// APIError is the structured error body of every failed request.
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

const (
	// Input validation errors
	ErrTypeValidation  = "validation_error"
	ErrTypeInvalidBody = "invalid_body"

	// Game errors
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeCardNotFound    = "card_not_found"
	ErrTypeInvalidState    = "invalid_state"
	ErrTypeScript          = "script_error"

	// System errors
	ErrTypeUnauthorized       = "unauthorized"
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for logging.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type.
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidBody:
		return CategoryValidation
	case ErrTypeSessionNotFound, ErrTypeCardNotFound, ErrTypeInvalidState, ErrTypeScript:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// GamesResponse lists the available games.
type GamesResponse struct {
	Games   []games.GameSpec `json:"games"`
	Version string           `json:"version"`
}

// CreateLotteryRequest deals a board. Omitted sizes use configured defaults.
type CreateLotteryRequest struct {
	TotalCards   *int `json:"total_cards"`
	WinningCards *int `json:"winning_cards"`
}

// RevealRequest flips one card.
type RevealRequest struct {
	CardID *int `json:"card_id"`
}

// AutoplayRequest plays the board with a script that defines pick(cards).
type AutoplayRequest struct {
	Script string `json:"script"`
}

// HorseEntry names one horse.
type HorseEntry struct {
	Name string `json:"name"`
}

// CreateRaceRequest lines up a race. Count defaults to len(Horses); omitted
// track width uses the configured default.
type CreateRaceRequest struct {
	Horses     []HorseEntry `json:"horses"`
	Count      int          `json:"count"`
	TrackWidth *float64     `json:"track_width"`
}

// HistoryResponse is one page of completed games.
type HistoryResponse struct {
	Results []store.Result `json:"results"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// DeleteHistoryResponse reports how many results were removed.
type DeleteHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}
