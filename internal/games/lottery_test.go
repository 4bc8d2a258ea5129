package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/minigames/internal/engine"
)

func countWinners(cards []Card) int {
	n := 0
	for _, c := range cards {
		if c.IsWinner {
			n++
		}
	}
	return n
}

func TestGenerateCardsDistribution(t *testing.T) {
	src := engine.NewSource()
	for total := 1; total <= 30; total++ {
		for winners := 0; winners <= total; winners++ {
			cards, err := GenerateCards(src, total, winners)
			require.NoError(t, err)
			require.Len(t, cards, total)
			assert.Equal(t, winners, countWinners(cards), "total=%d winners=%d", total, winners)

			seen := make(map[int]bool, total)
			for i, c := range cards {
				assert.Equal(t, i, c.ID)
				assert.False(t, c.IsRevealed)
				assert.False(t, seen[c.ID], "duplicate id %d", c.ID)
				seen[c.ID] = true
			}
		}
	}
}

func TestGenerateCardsBoundaries(t *testing.T) {
	// A source pinned to the top of the range must not stall when every card wins.
	cards, err := GenerateCards(engine.NewSequence(0.9999999), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, countWinners(cards))

	cards, err = GenerateCards(engine.NewSequence(0), 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, countWinners(cards))
}

func TestGenerateCardsConsumesOneDrawPerWinner(t *testing.T) {
	src := engine.NewSequence(0.3, 0.6, 0.9)
	_, err := GenerateCards(src, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Consumed())
}

func TestGenerateCardsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		winners int
	}{
		{"more winners than cards", 3, 4},
		{"no cards", 0, 0},
		{"negative winners", 5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := GenerateCards(engine.NewSource(), tt.total, tt.winners)
			assert.ErrorIs(t, err, ErrInvalidLotteryConfig)
			assert.Nil(t, cards)
		})
	}
}

func TestGenerateCardsUniform(t *testing.T) {
	const trials = 20000
	src := engine.NewHMACSource("lottery", "uniform", 1, 0)
	hits := make([]int, 10)
	for i := 0; i < trials; i++ {
		cards, err := GenerateCards(src, 10, 3)
		require.NoError(t, err)
		for _, c := range cards {
			if c.IsWinner {
				hits[c.ID]++
			}
		}
	}
	// Each slot wins with probability 3/10.
	for id, h := range hits {
		rate := float64(h) / trials
		assert.InDelta(t, 0.3, rate, 0.02, "slot %d", id)
	}
}

func TestRevealCardIdempotent(t *testing.T) {
	cards, err := GenerateCards(engine.NewSequence(0.5), 5, 2)
	require.NoError(t, err)

	first, delta1, err := RevealCard(cards, 2)
	require.NoError(t, err)
	second, delta2, err := RevealCard(first, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 0, delta2)
	if first[2].IsWinner {
		assert.Equal(t, 1, delta1)
	} else {
		assert.Equal(t, 0, delta1)
	}
	assert.False(t, cards[2].IsRevealed, "input slice must not be mutated")
}

func TestRevealCardNotFound(t *testing.T) {
	cards, err := GenerateCards(engine.NewSource(), 3, 1)
	require.NoError(t, err)

	for _, id := range []int{-1, 3, 100} {
		_, _, err := RevealCard(cards, id)
		assert.ErrorIs(t, err, ErrCardNotFound)
	}
}

func TestLotteryScenarioFiveTwo(t *testing.T) {
	// 0.5, 0.5 selects slots 2 and 3 as winners.
	l, err := NewLottery(engine.NewSequence(0.5), 5, 2)
	require.NoError(t, err)
	require.True(t, l.Cards()[2].IsWinner)
	require.True(t, l.Cards()[3].IsWinner)
	assert.False(t, l.Over())
	assert.Equal(t, 2, l.Remaining())

	delta, err := l.Reveal(0)
	require.NoError(t, err)
	assert.Equal(t, 0, delta)
	assert.False(t, l.Over())

	delta, err = l.Reveal(2)
	require.NoError(t, err)
	assert.Equal(t, 1, delta)
	assert.False(t, l.Over())
	assert.Equal(t, 1, l.Remaining())

	delta, err = l.Reveal(1)
	require.NoError(t, err)
	assert.Equal(t, 0, delta)
	assert.False(t, l.Over())

	delta, err = l.Reveal(3)
	require.NoError(t, err)
	assert.Equal(t, 1, delta)
	assert.True(t, l.Over())
	assert.Equal(t, 0, l.Remaining())
	assert.Equal(t, 4, l.Reveals())
}

func TestLotteryWinConditionExact(t *testing.T) {
	l, err := NewLottery(engine.NewSource(), 10, 3)
	require.NoError(t, err)

	var winners []int
	for _, c := range l.Cards() {
		if c.IsWinner {
			winners = append(winners, c.ID)
		}
	}
	require.Len(t, winners, 3)

	for i, id := range winners {
		assert.False(t, l.Over(), "over before reveal %d", i+1)
		_, err := l.Reveal(id)
		require.NoError(t, err)
	}
	assert.True(t, l.Over())
	assert.Equal(t, 3, l.Reveals())
}

func TestLotteryRevealTwiceCountsOnce(t *testing.T) {
	l, err := NewLottery(engine.NewSequence(0.5), 5, 2)
	require.NoError(t, err)

	_, err = l.Reveal(2)
	require.NoError(t, err)
	before := l.Cards()

	delta, err := l.Reveal(2)
	require.NoError(t, err)
	assert.Equal(t, 0, delta)
	assert.Equal(t, before, l.Cards())
	assert.Equal(t, 1, l.RevealedWinners())
	assert.Equal(t, 1, l.Reveals())
}

func TestLotteryZeroWinnersIsOverImmediately(t *testing.T) {
	l, err := NewLottery(engine.NewSource(), 4, 0)
	require.NoError(t, err)
	assert.True(t, l.Over())
}

func TestLotteryReset(t *testing.T) {
	l, err := NewLottery(engine.NewSource(), 6, 6)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := l.Reveal(i)
		require.NoError(t, err)
	}
	require.True(t, l.Over())

	require.NoError(t, l.Reset(engine.NewSource()))
	assert.False(t, l.Over())
	assert.Equal(t, 6, l.Remaining())
	assert.Equal(t, 0, l.Reveals())
	for _, c := range l.Cards() {
		assert.False(t, c.IsRevealed)
	}
}

func TestNewLotteryRejectsInvalid(t *testing.T) {
	l, err := NewLottery(engine.NewSource(), 2, 3)
	assert.ErrorIs(t, err, ErrInvalidLotteryConfig)
	assert.Nil(t, l)
}
