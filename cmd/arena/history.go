package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arena/internal/multiplayer"
	"github.com/vovakirdan/arena/internal/storage"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history [user]",
	Short: "Show recent matches",
	Long: `Display the most recent matches, or only those a user played in.

Examples:
  arena history
  arena history alice --limit 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Number of matches to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var user multiplayer.UserID
	if len(args) == 1 {
		user = multiplayer.UserID(args[0])
	}
	return printHistory(cmd.Context(), cmd.OutOrStdout(), store, user, flagHistoryLimit)
}

func printHistory(ctx context.Context, w io.Writer, store *storage.Store, user multiplayer.UserID, limit int) error {
	var (
		records []multiplayer.MatchRecord
		err     error
	)
	if user != "" {
		records, err = store.PlayerHistory(ctx, user, limit)
	} else {
		records, err = store.RecentMatches(ctx, limit)
	}
	if err != nil {
		return err
	}

	if user != "" {
		stats, err := store.Stats(ctx, user)
		if err != nil {
			return err
		}
		printTitle(w, fmt.Sprintf("Matches - %s (%d won, %d lost, %d forfeited)",
			user, stats.Wins, stats.Losses, stats.Forfeits))
	} else {
		printTitle(w, "Recent matches")
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No matches recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, matchRow(rec))
	}
	renderTable(w, matchHeaders, rows)
	return nil
}
