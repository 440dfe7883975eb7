// arena is an authoritative real-time Pong server.
//
// Usage:
//
//	arena serve                 - Start the WebSocket and SSH gateways
//	arena history [user]        - Show recent matches
//	arena leaderboard           - Show the win leaderboard
//	arena config                - Print the effective configuration
//
// Global flags:
//
//	--config <path>     - Config file (default: ~/.arena/server.yaml)
//	--db <path>         - Match database (default: ~/.arena/matches.db)
//	--log-level <lvl>   - debug, info, warn or error
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arena/internal/config"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Arena - authoritative real-time Pong server",
	Long: `Arena hosts two-player Pong matches. Clients connect over WebSocket
or SSH, pair up through the matchmaking queue or an invitation, and the
server runs the simulation and records the result.

Available commands:
  serve        - Start the game server
  history      - Show recent matches
  leaderboard  - Show the win leaderboard
  config       - Print the effective configuration

Examples:
  arena serve
  arena serve --ws :9000 --ssh ""
  arena history alice
  arena leaderboard --source redis`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to match database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Server.DBPath = flagDBPath
	}
	if flags.Changed("log-level") {
		cfg.Server.LogLevel = flagLogLevel
	}
	if flags.Changed("ws") {
		cfg.Server.WSAddress = flagWSAddr
	}
	if flags.Changed("ssh") {
		cfg.Server.SSHAddress = flagSSHAddr
	}
	if flags.Changed("host-key") {
		cfg.Server.HostKeyPath = flagHostKey
	}
	if flags.Changed("redis") {
		cfg.Ranking.RedisAddr = flagRedisAddr
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
