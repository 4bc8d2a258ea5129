package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/minigames/internal/engine"
	"github.com/MJE43/minigames/internal/session"
)

func newBoard(t *testing.T, total, winners int) *session.LotterySession {
	t.Helper()
	mgr := session.NewManager(session.Options{
		NewSource: func() engine.Source { return engine.NewSequence(0.5) },
	})
	t.Cleanup(mgr.Close)
	s, err := mgr.CreateLottery(total, winners)
	require.NoError(t, err)
	return s
}

const firstHidden = `
function pick(cards) {
	for (var i = 0; i < cards.length; i++) {
		if (!cards[i].revealed) return cards[i].id;
	}
	return -1;
}`

func TestAutoplayRevealsUntilOver(t *testing.T) {
	// Winners sit at 2 and 3, so the fourth reveal ends the game.
	board := newBoard(t, 5, 2)
	res, err := Autoplay(context.Background(), board, firstHidden)
	require.NoError(t, err)

	assert.True(t, res.Over)
	assert.Equal(t, 4, res.Steps)
	assert.Equal(t, 4, res.Reveals)
	assert.Zero(t, res.Wasted)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Picks)
	assert.True(t, board.Over())
	assert.True(t, res.Board.Over)
}

func TestAutoplayWastedPicksUseBudget(t *testing.T) {
	board := newBoard(t, 5, 2)
	res, err := Autoplay(context.Background(), board, `
		var n = 0;
		function pick(cards) {
			n++;
			if (n % 2 == 0) return 99;
			return 0;
		}`)
	require.NoError(t, err)

	// Step 1 reveals card 0, every later pick is either out of range or face up.
	assert.Equal(t, 5, res.Steps)
	assert.Equal(t, 1, res.Reveals)
	assert.Equal(t, 4, res.Wasted)
	assert.False(t, res.Over)
}

func TestAutoplayStopAndLogs(t *testing.T) {
	board := newBoard(t, 10, 3)
	res, err := Autoplay(context.Background(), board, `
		function pick(cards) {
			log("picking", 4);
			console.log("then stop");
			stop();
			return 4;
		}`)
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.Equal(t, 1, res.Steps)
	assert.True(t, board.Revealed(4))
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "picking 4", res.Logs[0].Message)
	assert.Equal(t, "then stop", res.Logs[1].Message)
}

func TestAutoplayScriptErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{"syntax error", `function pick(cards) {`, "script execution error"},
		{"missing pick", `var x = 1;`, "pick() function is not defined"},
		{"pick not a function", `var pick = 3;`, "pick is not a function"},
		{"undefined result", `function pick(cards) {}`, "must return a card id"},
		{"string result", `function pick(cards) { return "a"; }`, "want a number"},
		{"fractional result", `function pick(cards) { return 1.5; }`, "non-integer"},
		{"throws", `function pick(cards) { throw new Error("nope"); }`, "pick() error"},
		{"sandboxed require", `var fs = require("fs"); function pick() { return 0; }`, "script execution error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := newBoard(t, 5, 2)
			_, err := Autoplay(context.Background(), board, tt.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAutoplayInterruptsRunawayScript(t *testing.T) {
	board := newBoard(t, 5, 2)
	vmTimeoutStart := time.Now()
	_, err := Autoplay(context.Background(), board, `function pick(cards) { for (;;) {} }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(vmTimeoutStart), 5*time.Second)
	assert.Zero(t, board.Snapshot().Reveals)
}

func TestAutoplayHonoursCancel(t *testing.T) {
	board := newBoard(t, 5, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Autoplay(ctx, board, firstHidden)
	require.Error(t, err)
}

func TestAutoplayOnFinishedBoard(t *testing.T) {
	board := newBoard(t, 4, 0)
	res, err := Autoplay(context.Background(), board, firstHidden)
	require.NoError(t, err)
	assert.True(t, res.Over)
	assert.Zero(t, res.Steps)
}
