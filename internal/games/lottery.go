package games

import (
	"github.com/MJE43/minigames/internal/engine"
)

// Card is one slot on the lottery board.
type Card struct {
	ID         int  `json:"id"`
	IsWinner   bool `json:"is_winner"`
	IsRevealed bool `json:"is_revealed"`
}

// ValidateLotteryConfig checks a board size before any cards are generated.
func ValidateLotteryConfig(totalCards, winningCards int) error {
	if totalCards < 1 || winningCards < 0 || winningCards > totalCards {
		return ErrInvalidLotteryConfig
	}
	return nil
}

// GenerateCards builds totalCards hidden cards with exactly winningCards winners.
// Winners are the first winningCards slots of a partial Fisher-Yates shuffle,
// so it terminates in winningCards draws even when every card wins.
func GenerateCards(src engine.Source, totalCards, winningCards int) ([]Card, error) {
	if err := ValidateLotteryConfig(totalCards, winningCards); err != nil {
		return nil, err
	}

	perm := make([]int, totalCards)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < winningCards; i++ {
		j := i + engine.Intn(src, totalCards-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	cards := make([]Card, totalCards)
	for i := range cards {
		cards[i] = Card{ID: i}
	}
	for _, idx := range perm[:winningCards] {
		cards[idx].IsWinner = true
	}
	return cards, nil
}

// RevealCard returns a copy of cards with id flipped face up and the number
// of winners newly revealed (0 or 1). Revealing a face-up card changes nothing.
func RevealCard(cards []Card, id int) ([]Card, int, error) {
	if id < 0 || id >= len(cards) || cards[id].ID != id {
		return cards, 0, ErrCardNotFound
	}
	if cards[id].IsRevealed {
		return cards, 0, nil
	}

	out := make([]Card, len(cards))
	copy(out, cards)
	out[id].IsRevealed = true
	if out[id].IsWinner {
		return out, 1, nil
	}
	return out, 0, nil
}

// Lottery is a single board plus its win condition.
// It is not safe for concurrent use.
type Lottery struct {
	totalCards      int
	winningCards    int
	cards           []Card
	revealedWinners int
	reveals         int
	over            bool
}

// NewLottery validates the configuration and deals a fresh board.
func NewLottery(src engine.Source, totalCards, winningCards int) (*Lottery, error) {
	l := &Lottery{totalCards: totalCards, winningCards: winningCards}
	if err := l.Reset(src); err != nil {
		return nil, err
	}
	return l, nil
}

// Reset deals a new board with the same size, discarding the old one.
func (l *Lottery) Reset(src engine.Source) error {
	cards, err := GenerateCards(src, l.totalCards, l.winningCards)
	if err != nil {
		return err
	}
	l.cards = cards
	l.revealedWinners = 0
	l.reveals = 0
	l.over = l.revealedWinners == l.winningCards
	return nil
}

// Reveal flips card id and recomputes the win condition in the same step.
func (l *Lottery) Reveal(id int) (int, error) {
	if l.Revealed(id) {
		return 0, nil
	}
	cards, delta, err := RevealCard(l.cards, id)
	if err != nil {
		return 0, err
	}
	l.reveals++
	l.cards = cards
	l.revealedWinners += delta
	l.over = l.revealedWinners == l.winningCards
	return delta, nil
}

// Over reports whether every winning card has been revealed.
func (l *Lottery) Over() bool { return l.over }

// Remaining is the number of winning cards still hidden.
func (l *Lottery) Remaining() int { return l.winningCards - l.revealedWinners }

// RevealedWinners is the number of winning cards face up.
func (l *Lottery) RevealedWinners() int { return l.revealedWinners }

// Reveals counts distinct cards turned over since the last reset.
func (l *Lottery) Reveals() int { return l.reveals }

func (l *Lottery) TotalCards() int   { return l.totalCards }
func (l *Lottery) WinningCards() int { return l.winningCards }

// Cards returns a copy of the board.
func (l *Lottery) Cards() []Card {
	out := make([]Card, len(l.cards))
	copy(out, l.cards)
	return out
}

// Revealed reports whether card id is face up.
func (l *Lottery) Revealed(id int) bool {
	return id >= 0 && id < len(l.cards) && l.cards[id].IsRevealed
}
