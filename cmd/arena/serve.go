package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/arena/internal/gateway"
	"github.com/vovakirdan/arena/internal/matchmaking"
	"github.com/vovakirdan/arena/internal/multiplayer"
	"github.com/vovakirdan/arena/internal/ranking"
	"github.com/vovakirdan/arena/internal/storage"
)

var (
	flagWSAddr    string
	flagSSHAddr   string
	flagHostKey   string
	flagRedisAddr string
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arena server",
	Long: `Start the WebSocket and SSH gateways and the matchmaking coordinator.

WebSocket clients connect to /ws?user=<id>, optionally with &codec=msgpack.
SSH clients connect with their user name and exchange one JSON envelope
per line. Finished matches are written to the match database and, when a
Redis address is configured, to the Redis leaderboard.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.arena/host_key

Examples:
  arena serve                          # :8080 WebSocket, :23235 SSH
  arena serve --ws :9000               # WebSocket on port 9000
  arena serve --ssh ""                 # WebSocket only
  arena serve --redis localhost:6379   # Also keep a Redis leaderboard

Users can connect with:
  ssh alice@localhost -p 23235`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagWSAddr, "ws", "", "WebSocket address (host:port)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH address (host:port), empty disables SSH")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().StringVar(&flagRedisAddr, "redis", "", "Redis address for the leaderboard")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var adjusters []ranking.Adjuster
	if cfg.Ranking.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Ranking.RedisAddr})
		defer client.Close()

		board := ranking.NewRedisLeaderboard(client, cfg.Ranking.RedisKey)
		if err := board.Ping(ctx); err != nil {
			logger.Warn("redis leaderboard disabled", "error", err)
		} else {
			logger.Info("redis leaderboard enabled", "address", cfg.Ranking.RedisAddr, "key", board.Key())
			adjusters = append(adjusters, board)
		}
	}

	coord := matchmaking.NewCoordinator(cfg, multiplayer.NewRegistry(), logger)
	coord.SetRecorder(ranking.NewRecorder(store, logger, adjusters...))
	coord.Start()
	defer coord.Stop()

	wsSrv := gateway.NewWebSocketServer(cfg.Server.WSAddress, coord, logger)

	var sshSrv *gateway.SSHServer
	if cfg.Server.SSHAddress != "" {
		sshSrv, err = gateway.NewSSHServer(gateway.SSHConfig{
			Address:     cfg.Server.SSHAddress,
			HostKeyPath: cfg.Server.HostKeyPath,
			IdleTimeout: cfg.Server.IdleTimeout,
		}, coord, logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(wsSrv.ListenAndServe)
	if sshSrv != nil {
		g.Go(sshSrv.ListenAndServe)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs := []error{wsSrv.Shutdown(shutdownCtx)}
		if sshSrv != nil {
			errs = append(errs, sshSrv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
