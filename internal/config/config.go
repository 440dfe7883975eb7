// Package config provides YAML-based server configuration loading for the
// arena: network listeners, simulation tuning and matchmaking timeouts.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ServerConfig contains all configuration for the arena server.
type ServerConfig struct {
	Server   ServerSection  `yaml:"server"`
	Game     GameConfig     `yaml:"game"`
	Ball     BallConfig     `yaml:"ball"`
	Paddle   PaddleConfig   `yaml:"paddle"`
	Arena    ArenaConfig    `yaml:"arena"`
	Lobby    LobbyConfig    `yaml:"lobby"`
	Invites  InviteConfig   `yaml:"invites"`
	Recorder RecorderConfig `yaml:"recorder"`
	Ranking  RankingConfig  `yaml:"ranking"`
}

// ServerSection defines listeners, storage and logging.
type ServerSection struct {
	WSAddress   string        `yaml:"ws_address"`
	SSHAddress  string        `yaml:"ssh_address"` // empty disables the SSH gateway
	HostKeyPath string        `yaml:"host_key_path"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	DBPath      string        `yaml:"db_path"`
	LogLevel    string        `yaml:"log_level"`
}

// GameConfig defines session-level simulation parameters.
type GameConfig struct {
	TickRate    int           `yaml:"tick_rate"`    // Simulation ticks per second
	WarmupDelay time.Duration `yaml:"warmup_delay"` // Delay between start-game and the first tick
	WinScore    int           `yaml:"win_score"`
	ServeAngle  float64       `yaml:"serve_angle"` // Degrees either side of straight ahead
}

// BallConfig defines ball physics.
type BallConfig struct {
	DefaultSpeed float64       `yaml:"default_speed"`
	SpeedStep    float64       `yaml:"speed_step"`
	MaxSpeed     float64       `yaml:"max_speed"`
	Radius       float64       `yaml:"radius"`
	SlideAngle   float64       `yaml:"slide_angle"` // Degrees of curve applied on off-center hits
	RearmDelay   time.Duration `yaml:"rearm_delay"`
}

// PaddleConfig defines paddle dimensions. Length and Width are half-extents.
type PaddleConfig struct {
	Length float64 `yaml:"length"`
	Width  float64 `yaml:"width"`
	Speed  float64 `yaml:"speed"`
}

// ArenaConfig defines the play field. Width runs along the goal axis (x),
// Height along the bounce axis (z).
type ArenaConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// LobbyConfig defines matchmaking lobby timeouts.
type LobbyConfig struct {
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`  // Unready lobbies older than this are closed
	CleanupPeriod time.Duration `yaml:"cleanup_period"` // How often stale lobbies and invites are swept
}

// InviteConfig defines invitation expiry.
type InviteConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RecorderConfig defines retry behaviour for match recording.
type RecorderConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RankingConfig configures the optional Redis leaderboard.
type RankingConfig struct {
	RedisAddr string `yaml:"redis_addr"` // empty disables Redis
	RedisKey  string `yaml:"redis_key"`
}

// Validate checks values the simulation cannot run without.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Game.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("game.tick_rate must be positive, got %d", c.Game.TickRate))
	}
	if c.Game.WinScore <= 0 {
		errs = append(errs, fmt.Errorf("game.win_score must be positive, got %d", c.Game.WinScore))
	}
	if c.Arena.Width <= 0 || c.Arena.Height <= 0 {
		errs = append(errs, fmt.Errorf("arena dimensions must be positive, got %vx%v", c.Arena.Width, c.Arena.Height))
	}
	if c.Ball.MaxSpeed < c.Ball.DefaultSpeed {
		errs = append(errs, fmt.Errorf("ball.max_speed %v is below ball.default_speed %v", c.Ball.MaxSpeed, c.Ball.DefaultSpeed))
	}
	if c.Paddle.Length <= 0 || c.Paddle.Width <= 0 {
		errs = append(errs, errors.New("paddle dimensions must be positive"))
	}
	if c.Ball.SpeedStep <= 0 {
		errs = append(errs, fmt.Errorf("ball.speed_step must be positive, got %v", c.Ball.SpeedStep))
	}
	durations := []struct {
		key string
		val time.Duration
	}{
		{"ball.rearm_delay", c.Ball.RearmDelay},
		{"lobby.ready_timeout", c.Lobby.ReadyTimeout},
		{"lobby.cleanup_period", c.Lobby.CleanupPeriod},
		{"invites.timeout", c.Invites.Timeout},
	}
	for _, d := range durations {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.key, d.val))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}
