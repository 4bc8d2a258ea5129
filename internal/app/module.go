// Package app assembles the game server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/analysis"
	"github.com/MJE43/minigames/internal/api"
	"github.com/MJE43/minigames/internal/config"
	"github.com/MJE43/minigames/internal/events"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/session"
	"github.com/MJE43/minigames/internal/store"
)

// Module owns the database, event publisher, sessions and HTTP server.
type Module struct {
	cfg       *config.Config
	store     *store.Store
	publisher *events.NATSPublisher
	sessions  *session.Manager
	server    *Server
}

// NewModule wires every component but does not start the HTTP server.
// adminToken may be empty to disable admin endpoints.
func NewModule(cfg *config.Config, adminToken string) (*Module, error) {
	m := &Module{cfg: cfg}

	opts := session.Options{
		TTL:          cfg.SessionTTL,
		TickInterval: cfg.Games.Race.TickInterval,
		MinHorses:    cfg.Games.Race.MinHorses,
		MaxHorses:    cfg.Games.Race.MaxHorses,
		MaxCards:     cfg.Games.Lottery.MaxCards,
		MaxWidth:     cfg.Games.Race.MaxTrackWidth,
		Palette:      cfg.Games.Race.Palette,
		NamePattern:  cfg.Games.Race.NamePattern,
	}

	var history api.History
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		m.store = st
		opts.Recorder = st
		history = st
		log.WithField("path", cfg.DBPath).Info("History enabled")
	}

	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			m.closeBackends()
			return nil, err
		}
		m.publisher = events.NewNATSPublisher(nc)
		opts.Publisher = m.publisher
	}

	m.sessions = session.NewManager(opts)
	handler := api.NewServer(api.Options{
		Sessions:    m.sessions,
		History:     history,
		Analyzer:    analysis.NewAnalyzer(games.DefaultRaceRules()),
		Games:       cfg.Games,
		AdminToken:  adminToken,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log.StandardLogger(),
	}).Routes()
	m.server = NewServer(cfg.Addr, handler)
	return m, nil
}

// Startup binds the HTTP listener.
func (m *Module) Startup() error {
	if err := m.server.Start(); err != nil {
		return fmt.Errorf("listen on %s: %w", m.cfg.Addr, err)
	}
	log.WithField("addr", m.server.Addr()).Info("Minigames server listening")
	return nil
}

// Addr is the address the server is bound to.
func (m *Module) Addr() string { return m.server.Addr() }

// Errors reports a failure of the running HTTP server.
func (m *Module) Errors() <-chan error { return m.server.Errors() }

// Sessions exposes the session manager.
func (m *Module) Sessions() *session.Manager { return m.sessions }

// Shutdown stops the HTTP server, then the sessions so finished races are
// still recorded, then the publisher and database.
func (m *Module) Shutdown(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	m.sessions.Close()
	return errors.Join(err, m.closeBackends())
}

func (m *Module) closeBackends() error {
	var errs []error
	if m.publisher != nil {
		errs = append(errs, m.publisher.Close())
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}
	return errors.Join(errs...)
}
