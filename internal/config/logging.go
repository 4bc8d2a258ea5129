package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logrus logger.
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	return nil
}
