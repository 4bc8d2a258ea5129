package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/store"
)

// LotterySession is one live lottery board.
type LotterySession struct {
	id  uuid.UUID
	mgr *Manager

	mu         sync.Mutex
	lottery    *games.Lottery
	lastAccess time.Time
}

// LotterySnapshot is the client view of a board. Hidden cards never expose
// IsWinner until the game is over.
type LotterySnapshot struct {
	ID              uuid.UUID    `json:"id"`
	TotalCards      int          `json:"total_cards"`
	WinningCards    int          `json:"winning_cards"`
	RevealedWinners int          `json:"revealed_winners"`
	Remaining       int          `json:"remaining"`
	Reveals         int          `json:"reveals"`
	Over            bool         `json:"over"`
	Cards           []games.Card `json:"cards"`
}

// RevealResult is the outcome of a single reveal.
type RevealResult struct {
	CardID   int             `json:"card_id"`
	Delta    int             `json:"delta"`
	IsWinner bool            `json:"is_winner"`
	Snapshot LotterySnapshot `json:"snapshot"`
}

func (s *LotterySession) ID() uuid.UUID { return s.id }

// Snapshot returns the masked board.
func (s *LotterySession) Snapshot() LotterySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *LotterySession) snapshotLocked() LotterySnapshot {
	over := s.lottery.Over()
	cards := s.lottery.Cards()
	if !over {
		for i := range cards {
			if !cards[i].IsRevealed {
				cards[i].IsWinner = false
			}
		}
	}
	return LotterySnapshot{
		ID:              s.id,
		TotalCards:      s.lottery.TotalCards(),
		WinningCards:    s.lottery.WinningCards(),
		RevealedWinners: s.lottery.RevealedWinners(),
		Remaining:       s.lottery.Remaining(),
		Reveals:         s.lottery.Reveals(),
		Over:            over,
		Cards:           cards,
	}
}

// Reveal flips a card. The reveal that finds the last winner records the
// game once.
func (s *LotterySession) Reveal(cardID int) (RevealResult, error) {
	s.mu.Lock()
	wasOver := s.lottery.Over()
	delta, err := s.lottery.Reveal(cardID)
	if err != nil {
		s.mu.Unlock()
		return RevealResult{}, err
	}
	s.lastAccess = s.mgr.opts.Now()

	res := RevealResult{
		CardID:   cardID,
		Delta:    delta,
		IsWinner: s.lottery.Cards()[cardID].IsWinner,
		Snapshot: s.snapshotLocked(),
	}
	completed := !wasOver && s.lottery.Over()
	rec := store.LotteryRecord{
		SessionID:    s.id,
		TotalCards:   s.lottery.TotalCards(),
		WinningCards: s.lottery.WinningCards(),
		Reveals:      s.lottery.Reveals(),
	}
	s.mu.Unlock()

	if completed {
		s.mgr.lotteryCompleted(rec)
	}
	return res, nil
}

// Reset deals a fresh board of the same size.
func (s *LotterySession) Reset() (LotterySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lottery.Reset(s.mgr.opts.NewSource()); err != nil {
		return LotterySnapshot{}, err
	}
	s.lastAccess = s.mgr.opts.Now()
	return s.snapshotLocked(), nil
}

// Over reports whether every winner is face up.
func (s *LotterySession) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lottery.Over()
}

// Revealed reports whether card id is face up.
func (s *LotterySession) Revealed(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lottery.Revealed(id)
}

func (s *LotterySession) touch() {
	s.mu.Lock()
	s.lastAccess = s.mgr.opts.Now()
	s.mu.Unlock()
}

func (s *LotterySession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
