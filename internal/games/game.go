package games

import "errors"

// GameSpec describes a game for listing endpoints.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	LotteryID = "lottery"
	RaceID    = "race"
)

var (
	// ErrInvalidLotteryConfig is returned when winningCards is outside [0, totalCards]
	// or totalCards is not positive.
	ErrInvalidLotteryConfig = errors.New("winning cards must be between 0 and total cards")
	// ErrCardNotFound is returned when revealing an id outside the board.
	ErrCardNotFound = errors.New("card not found")
	// ErrInvalidRaceConfig is returned for zero horses or a non-positive track width.
	ErrInvalidRaceConfig = errors.New("race needs at least one horse and a positive track width")
	// ErrRaceInProgress is returned when starting a race that is already running.
	ErrRaceInProgress = errors.New("race already in progress")
	// ErrRaceFinished is returned when starting a race that has not been reset.
	ErrRaceFinished = errors.New("race already finished; reset to race again")
)

var registry = []GameSpec{
	{
		ID:          LotteryID,
		Name:        "Lottery Cards",
		Description: "Reveal hidden cards until every winning card is found.",
	},
	{
		ID:          RaceID,
		Name:        "Horse Race",
		Description: "Horses advance with random speed changes and catch-up boosts until all cross the line.",
	},
}

// ListGames returns the available games.
func ListGames() []GameSpec {
	out := make([]GameSpec, len(registry))
	copy(out, registry)
	return out
}

// GetGame looks a game up by id.
func GetGame(id string) (GameSpec, bool) {
	for _, g := range registry {
		if g.ID == id {
			return g, true
		}
	}
	return GameSpec{}, false
}
