package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Server: ServerSection{
			WSAddress:   ":8080",
			SSHAddress:  ":23235",
			IdleTimeout: 30 * time.Minute,
			DBPath:      "~/.arena/matches.db",
			LogLevel:    "info",
		},
		Game: GameConfig{
			TickRate:    160,
			WarmupDelay: 3 * time.Second,
			WinScore:    5,
			ServeAngle:  30,
		},
		Ball: BallConfig{
			DefaultSpeed: 85,
			SpeedStep:    20,
			MaxSpeed:     180,
			Radius:       2,
			SlideAngle:   20,
			RearmDelay:   3 * time.Second,
		},
		Paddle: PaddleConfig{
			Length: 12,
			Width:  2,
			Speed:  3,
		},
		Arena: ArenaConfig{
			Width:  200,
			Height: 100,
		},
		Lobby: LobbyConfig{
			ReadyTimeout:  2 * time.Minute,
			CleanupPeriod: 30 * time.Second,
		},
		Invites: InviteConfig{
			Timeout: time.Minute,
		},
		Recorder: RecorderConfig{
			Attempts: 3,
			Backoff:  500 * time.Millisecond,
			Timeout:  5 * time.Second,
		},
		Ranking: RankingConfig{
			RedisKey: "arena:leaderboard",
		},
	}
}
