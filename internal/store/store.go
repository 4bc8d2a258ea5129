// Package store keeps a ledger of completed games in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/minigames/internal/games"
)

// --------- Data models ---------

// Placing is one horse's result in a finished race.
type Placing struct {
	Place         int    `json:"place"`
	HorseID       int    `json:"horse_id"`
	Name          string `json:"name"`
	Color         string `json:"color"`
	FinishSeconds string `json:"finish_seconds"`
}

// RaceRecord is a finished race as handed to the store.
type RaceRecord struct {
	SessionID  uuid.UUID
	TrackWidth float64
	Ticks      int
	Finishers  []games.Horse // finish order
}

// LotteryRecord is a completed lottery as handed to the store.
type LotteryRecord struct {
	SessionID    uuid.UUID
	TotalCards   int
	WinningCards int
	Reveals      int
}

// Result is one stored game outcome. Race results carry placings, lottery
// results carry the board size and reveal count.
type Result struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Game         string    `json:"game"`
	CompletedAt  time.Time `json:"completed_at"`
	TrackWidth   float64   `json:"track_width,omitempty"`
	Ticks        int       `json:"ticks,omitempty"`
	TotalCards   int       `json:"total_cards,omitempty"`
	WinningCards int       `json:"winning_cards,omitempty"`
	Reveals      int       `json:"reveals,omitempty"`
	Placings     []Placing `json:"placings,omitempty"`
}

// Query filters and paginates ListResults.
type Query struct {
	Game    string
	Page    int
	PerPage int
}

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	return q
}

// ErrUnknownGame is returned for a Query.Game that is not a known game id.
var ErrUnknownGame = errors.New("unknown game")

// --------- Store ---------

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens or creates a SQLite database at dbPath and runs migrations.
// dbPath may be ":memory:".
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --------- Migrations ---------

// Migrate creates the schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			game TEXT NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			track_width REAL NOT NULL DEFAULT 0,
			ticks INTEGER NOT NULL DEFAULT 0,
			total_cards INTEGER NOT NULL DEFAULT 0,
			winning_cards INTEGER NOT NULL DEFAULT 0,
			reveals INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_game_completed ON results(game, completed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_results_completed ON results(completed_at DESC);`,

		`CREATE TABLE IF NOT EXISTS placings (
			result_id TEXT NOT NULL,
			place INTEGER NOT NULL,
			horse_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL,
			finish_seconds TEXT NOT NULL,
			PRIMARY KEY(result_id, place),
			FOREIGN KEY(result_id) REFERENCES results(id) ON DELETE CASCADE
		);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}

// --------- Writes ---------

// SaveRace stores a finished race and its placings in one transaction.
func (s *Store) SaveRace(ctx context.Context, rec RaceRecord) (uuid.UUID, error) {
	id := uuid.New()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (id, session_id, game, completed_at, track_width, ticks)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), rec.SessionID.String(), games.RaceID, s.now(), rec.TrackWidth, rec.Ticks)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert race result: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO placings (result_id, place, horse_id, name, color, finish_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer stmt.Close()

	for i, h := range rec.Finishers {
		seconds := decimal.Zero
		if h.FinishTime != nil {
			seconds = games.FinishSeconds(*h.FinishTime)
		}
		if _, err := stmt.ExecContext(ctx, id.String(), i+1, h.ID, h.Name, h.Color, seconds.StringFixed(2)); err != nil {
			return uuid.Nil, fmt.Errorf("insert placing %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// SaveLottery stores a completed lottery.
func (s *Store) SaveLottery(ctx context.Context, rec LotteryRecord) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, session_id, game, completed_at, total_cards, winning_cards, reveals)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), rec.SessionID.String(), games.LotteryID, s.now(),
		rec.TotalCards, rec.WinningCards, rec.Reveals)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert lottery result: %w", err)
	}
	return id, nil
}

// DeleteAll clears the ledger and returns the number of results removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM placings`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM results`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// --------- Reads ---------

// ListResults returns one page of results, newest first, and the total count
// matching the filter.
func (s *Store) ListResults(ctx context.Context, q Query) ([]Result, int, error) {
	q = q.normalize()
	if q.Game != "" {
		if _, ok := games.GetGame(q.Game); !ok {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnknownGame, q.Game)
		}
	}

	var (
		where []string
		args  []any
	)
	if q.Game != "" {
		where = append(where, "game = ?")
		args = append(args, q.Game)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]any(nil), args...), q.PerPage, (q.Page-1)*q.PerPage)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, game, completed_at, track_width, ticks, total_cards, winning_cards, reveals
		 FROM results`+clause+`
		 ORDER BY completed_at DESC, id
		 LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r           Result
			idStr, sess string
		)
		if err := rows.Scan(&idStr, &sess, &r.Game, &r.CompletedAt, &r.TrackWidth, &r.Ticks,
			&r.TotalCards, &r.WinningCards, &r.Reveals); err != nil {
			return nil, 0, err
		}
		r.ID, _ = uuid.Parse(idStr)
		r.SessionID, _ = uuid.Parse(sess)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	for i := range out {
		if out[i].Game != games.RaceID {
			continue
		}
		placings, err := s.placings(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Placings = placings
	}
	return out, total, nil
}

func (s *Store) placings(ctx context.Context, resultID uuid.UUID) ([]Placing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT place, horse_id, name, color, finish_seconds
		 FROM placings WHERE result_id = ? ORDER BY place`, resultID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Placing
	for rows.Next() {
		var p Placing
		if err := rows.Scan(&p.Place, &p.HorseID, &p.Name, &p.Color, &p.FinishSeconds); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
