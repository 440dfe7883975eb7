package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/arena/internal/multiplayer"
)

// DefaultRedisKey is the sorted set used when no key is configured.
const DefaultRedisKey = "arena:leaderboard"

// Entry is one leaderboard row.
type Entry struct {
	Rank   int64
	UserID multiplayer.UserID
	Wins   int64
}

// RedisLeaderboard keeps a win count per user in a Redis sorted set.
type RedisLeaderboard struct {
	client redis.Cmdable
	key    string
}

var _ Adjuster = (*RedisLeaderboard)(nil)

// NewRedisLeaderboard creates a leaderboard stored under key.
func NewRedisLeaderboard(client redis.Cmdable, key string) *RedisLeaderboard {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLeaderboard{client: client, key: key}
}

// Key returns the sorted set name.
func (l *RedisLeaderboard) Key() string {
	return l.key
}

// Ping checks that Redis is reachable.
func (l *RedisLeaderboard) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ranking: redis unreachable: %w", err)
	}
	return nil
}

// Adjust credits the winner with one win. The loser is added with a zero
// increment so it shows up on the board.
func (l *RedisLeaderboard) Adjust(ctx context.Context, record multiplayer.MatchRecord) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, l.key, 1, string(record.WinnerID))
		pipe.ZIncrBy(ctx, l.key, 0, string(record.LoserID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("ranking: cannot adjust %s: %w", record.MatchID, err)
	}
	return nil
}

// Top returns the n users with the most wins.
func (l *RedisLeaderboard) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("ranking: cannot read leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{
			Rank:   int64(i + 1),
			UserID: multiplayer.UserID(member),
			Wins:   int64(z.Score),
		})
	}
	return entries, nil
}

// Rank returns the 1-based position of user, or ok=false when the user has
// no entry yet.
func (l *RedisLeaderboard) Rank(ctx context.Context, user multiplayer.UserID) (rank int64, ok bool, err error) {
	pos, err := l.client.ZRevRank(ctx, l.key, string(user)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ranking: cannot rank %s: %w", user, err)
	}
	return pos + 1, true, nil
}
