package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/minigames/internal/games"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:17888", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, DefaultGames(), cfg.Games)
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
race:
  track_width: 500
  tick_interval: 20ms
  max_horses: 6
lottery:
  total_cards: 12
  winning_cards: 4
`), 0o600))

	cfg, err := LoadFrom(map[string]string{
		"MINIGAMES_ADDR":         ":9000",
		"MINIGAMES_DB_PATH":      "/tmp/history.db",
		"MINIGAMES_CONFIG":       path,
		"MINIGAMES_SESSION_TTL":  "5m",
		"MINIGAMES_CORS_ORIGINS": "http://a.test,http://b.test",
		"MINIGAMES_ADMIN_TOKEN":  "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/tmp/history.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "secret", cfg.AdminToken)

	assert.Equal(t, 500.0, cfg.Games.Race.TrackWidth)
	assert.Equal(t, 20*time.Millisecond, cfg.Games.Race.TickInterval)
	assert.Equal(t, 6, cfg.Games.Race.MaxHorses)
	assert.Equal(t, 1, cfg.Games.Race.MinHorses, "omitted keys keep defaults")
	assert.Equal(t, games.DefaultPalette, cfg.Games.Race.Palette)
	assert.Equal(t, 12, cfg.Games.Lottery.TotalCards)
}

func TestLoadFromErrors(t *testing.T) {
	_, err := LoadFrom(map[string]string{"MINIGAMES_SESSION_TTL": "soon"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"MINIGAMES_CONFIG": filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestParseGames(t *testing.T) {
	g, err := ParseGames(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGames(), g)

	g, err = ParseGames([]byte("race:\n  palette: ['#000', '#FFFFFF']\n  name_pattern: 'Runner %d'\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"#000", "#FFFFFF"}, g.Race.Palette)
	assert.Equal(t, "Runner %d", g.Race.NamePattern)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "race:\n  speed: 3\n"},
		{"bad width", "race:\n  track_width: 0\n"},
		{"min above max", "race:\n  min_horses: 5\n  max_horses: 2\n"},
		{"zero tick", "race:\n  tick_interval: 0s\n"},
		{"bad colour", "race:\n  palette: ['red']\n"},
		{"empty palette", "race:\n  palette: []\n"},
		{"pattern without number", "race:\n  name_pattern: 'Horse'\n"},
		{"pattern with extra verb", "race:\n  name_pattern: '%s %d'\n"},
		{"too many winners", "lottery:\n  total_cards: 2\n  winning_cards: 3\n"},
		{"max cards below total", "lottery:\n  total_cards: 20\n  max_cards: 10\n"},
		{"max cards too large to draw", "lottery:\n  max_cards: 500\n"},
		{"max width below width", "race:\n  track_width: 900\n  max_track_width: 500\n"},
		{"not yaml", "race: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGames([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	require.NoError(t, SetupLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, ok)

	assert.Error(t, SetupLogging("loud", "text"))
	assert.Error(t, SetupLogging("info", "xml"))
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	g, err := ParseGames(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultGames(), g)
}
