package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MJE43/minigames/internal/games"
)

var exportHeader = []string{
	"id", "session_id", "game", "completed_at",
	"track_width", "ticks", "winner", "winner_seconds",
	"total_cards", "winning_cards", "reveals",
}

// ExportCSV writes every stored result, oldest first, as CSV with a header
// row. An empty game exports all games.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, game string) error {
	if game != "" {
		if _, ok := games.GetGame(game); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownGame, game)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.session_id, r.game, r.completed_at, r.track_width, r.ticks,
		       p.name, p.finish_seconds, r.total_cards, r.winning_cards, r.reveals
		FROM results r
		LEFT JOIN placings p ON p.result_id = r.id AND p.place = 1
		WHERE ? = '' OR r.game = ?
		ORDER BY r.completed_at ASC, r.id`, game, game)
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for rows.Next() {
		var (
			id, sess, g             string
			completed               time.Time
			width                   float64
			ticks, total, win, revs int
			winner, winnerSecs      sql.NullString
		)
		if err := rows.Scan(&id, &sess, &g, &completed, &width, &ticks,
			&winner, &winnerSecs, &total, &win, &revs); err != nil {
			return err
		}

		record := []string{id, sess, g, completed.UTC().Format(time.RFC3339), "", "", "", "", "", "", ""}
		if g == games.RaceID {
			record[4] = strconv.FormatFloat(width, 'f', -1, 64)
			record[5] = strconv.Itoa(ticks)
			record[6] = winner.String
			record[7] = winnerSecs.String
		} else {
			record[8] = strconv.Itoa(total)
			record[9] = strconv.Itoa(win)
			record[10] = strconv.Itoa(revs)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
