package scripting

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/session"
)

// Board is the lottery a script plays. *session.LotterySession satisfies it.
type Board interface {
	Snapshot() session.LotterySnapshot
	Reveal(cardID int) (session.RevealResult, error)
}

// Result summarizes an autoplay run.
type Result struct {
	Steps   int                     `json:"steps"`
	Reveals int                     `json:"reveals"`
	Wasted  int                     `json:"wasted"`
	Picks   []int                   `json:"picks"`
	Over    bool                    `json:"over"`
	Stopped bool                    `json:"stopped"`
	Logs    []LogEntry              `json:"logs"`
	Board   session.LotterySnapshot `json:"board"`
}

// Autoplay runs script against board until the game is over, the script calls
// stop(), or it has used one step per card. A pick of an unknown or face-up
// card wastes its step.
func Autoplay(ctx context.Context, board Board, script string) (Result, error) {
	vm := NewVM()
	if err := vm.Execute(ctx, script); err != nil {
		return Result{Logs: vm.Logs(), Board: board.Snapshot()}, err
	}

	snap := board.Snapshot()
	res := Result{Picks: []int{}}
	budget := snap.TotalCards

	for res.Steps < budget && !snap.Over {
		if err := ctx.Err(); err != nil {
			return finish(res, vm, snap), err
		}

		id, err := vm.CallPick(ctx, cardArgs(snap.Cards))
		if err != nil {
			return finish(res, vm, snap), err
		}
		res.Steps++
		res.Picks = append(res.Picks, id)

		if id < 0 || id >= len(snap.Cards) || snap.Cards[id].IsRevealed {
			res.Wasted++
		} else {
			reveal, err := board.Reveal(id)
			switch {
			case errors.Is(err, games.ErrCardNotFound):
				res.Wasted++
			case err != nil:
				return finish(res, vm, snap), err
			default:
				res.Reveals++
				snap = reveal.Snapshot
			}
		}

		if vm.StopRequested() {
			res.Stopped = true
			break
		}
	}

	res = finish(res, vm, board.Snapshot())
	log.WithFields(log.Fields{
		"steps":   res.Steps,
		"reveals": res.Reveals,
		"wasted":  res.Wasted,
		"over":    res.Over,
	}).Debug("Autoplay finished")
	return res, nil
}

func finish(res Result, vm *VM, snap session.LotterySnapshot) Result {
	res.Logs = vm.Logs()
	res.Board = snap
	res.Over = snap.Over
	return res
}

func cardArgs(cards []games.Card) []cardArg {
	out := make([]cardArg, len(cards))
	for i, c := range cards {
		out[i] = cardArg{ID: c.ID, Revealed: c.IsRevealed, Winner: c.IsRevealed && c.IsWinner}
	}
	return out
}
