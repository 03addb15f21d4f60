// Command tablerelay starts the multiplayer session coordinator for
// turn-based board games.
//
// The server relays between one authoritative game-master connection and the
// player clients of each room: membership, authority handover, collective
// votes and partitioned state fan-out all happen here, while game rules stay
// with the master. Clients speak JSON over a WebSocket at /ws; a small
// read-only REST API and a health endpoint ride alongside.
//
// Flags control host/port and debug logging, and an optional ngrok tunnel
// exposes the server publicly during development.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/tablerelay/tablerelay/api"
	"github.com/tablerelay/tablerelay/game/coordinator"
	"github.com/tablerelay/tablerelay/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "tablerelay"
)

func main() {
	// Load .env if present; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    AppName,
		Usage:   "session coordinator for turn-based board games",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// run wires the hub, coordinator, dispatcher and API server, then serves
// until a shutdown signal arrives.
func run(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("debug"))
	logger.Info("starting", "app", AppName, "version", Version)

	hub := websocket.NewHub(logger.New("component", "hub"))
	coord := coordinator.New(hub, hub, logger.New("component", "coordinator"))
	hub.SetHandler(websocket.NewDispatcher(coord, hub, logger.New("component", "dispatcher")))
	apiServer := api.NewServer(coord, hub, logger.New("component", "api"))

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), int(cmd.Int("port")))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http server listening", "addr", addr)
		logger.Info("endpoints", "rest", fmt.Sprintf("http://%s/api", addr), "websocket", fmt.Sprintf("ws://%s/ws", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Crit("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd, apiServer, logger.New("component", "ngrok"))
		}()
	}

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "context cancelled")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}

// runNgrok provisions a public tunnel and serves the same handler through it.
func runNgrok(ctx context.Context, cmd *cli.Command, handler http.Handler, logger log15.Logger) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "err", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			logger.Error("failed to close ngrok tunnel", "err", err)
		}
	}()

	logger.Info("ngrok tunnel established", "url", tun.URL())
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		logger.Error("ngrok server error", "err", err)
	}
	logger.Info("ngrok tunnel closed")
}

// newLogger builds the root logger. Debug mode lowers the level filter.
func newLogger(debug bool) log15.Logger {
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}
	logger := log15.New()
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
	return logger
}
