package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/internal/config"
	"github.com/greenwood-edu/lostfound-auth/server"
	"github.com/greenwood-edu/lostfound-auth/token/refresh/repomem"
	"github.com/greenwood-edu/lostfound-auth/users"
	"github.com/greenwood-edu/lostfound-auth/users/repojson"
	"github.com/greenwood-edu/lostfound-auth/users/repopg"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	userRepo, err := newUserRepo(c)
	if err != nil {
		return err
	}
	if seedFile := c.GetSeedFile(); seedFile != "" {
		if err := server.SeedUsers(context.Background(), userRepo, seedFile); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	srv := &http.Server{
		Addr:    c.GetPort(),
		Handler: server.New(c, userRepo, repomem.NewMemoryTokenRepo()),
	}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

func newUserRepo(c config.Config) (users.Repo, error) {
	if dbURL := c.GetDatabaseURL(); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Info().Msg("using postgres user repository")
		return repopg.New(pool), nil
	}

	path := filepath.Join(c.GetDataFolder(), "users.json")
	log.Info().Str("path", path).Msg("using file-backed user repository")
	return repojson.New(path)
}

func listenAndServe(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
