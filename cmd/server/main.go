package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-campsite-client/apiclient"
	"github.com/jrsteele09/go-campsite-client/auth"
	"github.com/jrsteele09/go-campsite-client/internal/config"
	"github.com/jrsteele09/go-campsite-client/server"
	"github.com/jrsteele09/go-campsite-client/token"
	tokenrepofake "github.com/jrsteele09/go-campsite-client/token/repofake"
	"github.com/jrsteele09/go-campsite-client/token/sqlitestore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	for {
		if err := run(*configPath); err != nil {
			log.Error().Err(err).Msg("Error running server, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run(configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	store, closeStore, err := openTokenStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	navigator := server.NewNavigator()
	client, err := apiclient.New(c, store,
		apiclient.WithNavigator(navigator),
		apiclient.WithLoginPath(c.GetLoginPath()),
	)
	if err != nil {
		return fmt.Errorf("apiclient.New: %w", err)
	}
	sessions, err := auth.NewSessionManager(client, store,
		auth.WithNavigator(navigator),
		auth.WithLoginPath(c.GetLoginPath()),
	)
	if err != nil {
		return fmt.Errorf("auth.NewSessionManager: %w", err)
	}
	defer sessions.Close()

	go func() {
		if err := sessions.Initialize(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Stored session could not be restored")
		}
	}()

	handler, err := server.New(c, server.Deps{
		Client:    client,
		Sessions:  sessions,
		Store:     store,
		Navigator: navigator,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listenAndServe(httpServer)
	}()
	if err := waitForStopSignal(listenErr); err != nil {
		return err
	}
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openTokenStore keeps credentials in SQLite when a path is configured and in
// memory otherwise.
func openTokenStore(c config.Config) (token.Store, func(), error) {
	path := c.GetTokenStorePath()
	if path == "" {
		log.Info().Msg("No token store path configured, credentials are kept in memory")
		return tokenrepofake.NewMemoryStore(), func() {}, nil
	}

	store, err := sqlitestore.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlitestore.Open: %w", err)
	}
	log.Info().Str("path", path).Msg("Token store opened")
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("token store close")
		}
	}, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

// waitForStopSignal blocks until a stop signal arrives or the listener fails.
func waitForStopSignal(listenErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case <-stop:
		return nil
	case err := <-listenErr:
		if err == nil {
			return errors.New("server stopped listening")
		}
		return err
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
