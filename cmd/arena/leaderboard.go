package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/arena/internal/ranking"
	"github.com/vovakirdan/arena/internal/storage"
)

var (
	flagBoardLimit  int
	flagBoardSource string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the win leaderboard",
	Long: `Display the players with the most wins.

The sqlite source reads the match database. The redis source reads the
sorted set kept by a server started with a Redis address.

Examples:
  arena leaderboard
  arena leaderboard --source redis --redis localhost:6379`,
	Args: cobra.NoArgs,
	RunE: runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().IntVar(&flagBoardLimit, "limit", 10, "Number of players to show")
	leaderboardCmd.Flags().StringVar(&flagBoardSource, "source", "sqlite", "Leaderboard source: sqlite or redis")
	leaderboardCmd.Flags().StringVar(&flagRedisAddr, "redis", "", "Redis address (overrides config)")
}

func runLeaderboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	switch flagBoardSource {
	case "sqlite":
		store, err := storage.Open(cfg.Server.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		return printLeaderboard(cmd.Context(), cmd.OutOrStdout(), store, flagBoardLimit)

	case "redis":
		if cfg.Ranking.RedisAddr == "" {
			return fmt.Errorf("no redis address configured")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.Ranking.RedisAddr})
		defer client.Close()
		board := ranking.NewRedisLeaderboard(client, cfg.Ranking.RedisKey)
		return printRedisLeaderboard(cmd.Context(), cmd.OutOrStdout(), board, flagBoardLimit)

	default:
		return fmt.Errorf("unknown leaderboard source %q", flagBoardSource)
	}
}

func printLeaderboard(ctx context.Context, w io.Writer, store *storage.Store, limit int) error {
	board, err := store.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}

	printTitle(w, "Leaderboard")
	if len(board) == 0 {
		fmt.Fprintln(w, "No matches recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(board))
	for i, p := range board {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(p.UserID),
			strconv.Itoa(p.Wins),
			strconv.Itoa(p.Losses),
			strconv.Itoa(p.Forfeits),
			p.LastPlayed.Local().Format("2006-01-02 15:04"),
		})
	}
	renderTable(w, []string{"Rank", "Player", "Wins", "Losses", "Forfeits", "Last played"}, rows)
	return nil
}

func printRedisLeaderboard(ctx context.Context, w io.Writer, board *ranking.RedisLeaderboard, limit int) error {
	entries, err := board.Top(ctx, limit)
	if err != nil {
		return err
	}

	printTitle(w, "Leaderboard (redis)")
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matches recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.Rank, 10),
			string(e.UserID),
			strconv.FormatInt(e.Wins, 10),
		})
	}
	renderTable(w, []string{"Rank", "Player", "Wins"}, rows)
	return nil
}
