// Command minigames serves the lottery and horse race games over HTTP.
//
// Usage:
//
//	minigames [serve]
//	minigames token set [value]
//	minigames token clear
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/api"
	"github.com/MJE43/minigames/internal/app"
	"github.com/MJE43/minigames/internal/auth"
	"github.com/MJE43/minigames/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "token":
		err = token(args)
	case "version":
		v := api.GetVersionInfo()
		fmt.Printf("minigames %s (%s, built %s)\n", v.Version, v.GitCommit, v.BuildTime)
	default:
		err = fmt.Errorf("unknown command %q (want serve, token or version)", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func keyringStore() *auth.KeyringStore {
	return auth.NewKeyringStore("", auth.DefaultFallbackPath())
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	adminToken, err := auth.Resolve(cfg.AdminToken, keyringStore())
	if err != nil {
		log.WithError(err).Warn("Could not read stored admin token")
	}
	if adminToken == "" {
		log.Info("No admin token configured; destructive endpoints are disabled")
	}

	module, err := app.NewModule(cfg, adminToken)
	if err != nil {
		return err
	}
	if err := module.Startup(); err != nil {
		_ = module.Shutdown(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case serveErr = <-module.Errors():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, module.Shutdown(shutdownCtx))
}

func token(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: minigames token set [value] | clear")
	}
	store := keyringStore()
	switch args[0] {
	case "set":
		value := ""
		if len(args) > 1 {
			value = args[1]
		} else {
			generated, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			value = generated
			fmt.Println(value)
		}
		if err := store.SetToken(value); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Admin token stored")
		return nil
	case "clear":
		if err := store.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Admin token cleared")
		return nil
	default:
		return fmt.Errorf("unknown token command %q", args[0])
	}
}
