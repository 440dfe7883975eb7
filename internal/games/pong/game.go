package pong

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

var (
	// ErrPlayerCount is returned when a game is built with other than two players.
	ErrPlayerCount = errors.New("pong: a game needs exactly two players")
	// ErrSides is returned when both players defend the same side.
	ErrSides = errors.New("pong: players must be on opposite sides")
)

// GameOptions configures a Game.
type GameOptions struct {
	ID       multiplayer.MatchID
	Game     config.GameConfig
	Recorder config.RecorderConfig

	// MatchRecorder receives the result once the game finishes. Optional.
	MatchRecorder multiplayer.MatchRecorder
	Logger        *log.Logger
	// OnFinish is called once after the loop has exited for a finished game.
	OnFinish func(multiplayer.MatchResult)
	// Rand drives serve angles. Defaults to a time-seeded source.
	Rand *rand.Rand
	// Reports, when set, counts background recordings so a shutdown can
	// wait for them to finish.
	Reports *sync.WaitGroup
}

type moveInput struct {
	conn     multiplayer.ConnID
	position core.Vector3
}

type forfeitRequest struct {
	conn multiplayer.ConnID
	done chan struct{}
}

// Game is one authoritative Pong session. After Start, the ball, both
// paddles and all timers are owned by the game goroutine; other goroutines
// reach it only through Move, Forfeit and Dispose.
type Game struct {
	id       multiplayer.MatchID
	cfg      config.GameConfig
	recCfg   config.RecorderConfig
	recorder multiplayer.MatchRecorder
	logger   *log.Logger
	onFinish func(multiplayer.MatchResult)
	rng      *rand.Rand
	reports  *sync.WaitGroup

	left  *Player
	right *Player
	ball  *Ball
	arena *Arena

	inputs   chan moveInput
	forfeits chan forfeitRequest
	stop     chan struct{}
	exited   chan struct{}

	startOnce   sync.Once
	stopOnce    sync.Once
	releaseOnce sync.Once
	started     atomic.Bool
	finished    atomic.Bool
	disposed    atomic.Bool

	ticker    *time.Ticker
	warmup    *time.Timer
	lastTick  time.Time
	startedAt time.Time
	result    *multiplayer.MatchResult
}

// NewGame builds a game from two players on opposite sides, a ball and an
// arena. The game takes ownership of the players and the ball.
func NewGame(opts GameOptions, players []*Player, ball *Ball, arena *Arena) (*Game, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrPlayerCount, len(players))
	}
	left, right := players[0], players[1]
	if left.Side() == right.Side() {
		return nil, fmt.Errorf("%w: both on %s", ErrSides, left.Side())
	}
	if left.Side() == multiplayer.SideRight {
		left, right = right, left
	}
	left.SetOpponent(right)
	right.SetOpponent(left)

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Game{
		id:       opts.ID,
		cfg:      opts.Game,
		recCfg:   opts.Recorder,
		recorder: opts.MatchRecorder,
		reports:  opts.Reports,
		logger:   logger.With("match", opts.ID),
		onFinish: opts.OnFinish,
		rng:      rng,
		left:     left,
		right:    right,
		ball:     ball,
		arena:    arena,
		inputs:   make(chan moveInput, 64),
		forfeits: make(chan forfeitRequest),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}, nil
}

// ID returns the match identifier.
func (g *Game) ID() multiplayer.MatchID { return g.id }

// Left returns the left paddle.
func (g *Game) Left() *Player { return g.left }

// Right returns the right paddle.
func (g *Game) Right() *Player { return g.right }

// Ball returns the ball.
func (g *Game) Ball() *Ball { return g.ball }

// Started reports whether Start has run.
func (g *Game) Started() bool { return g.started.Load() }

// Finished reports whether the game has reached a result.
func (g *Game) Finished() bool { return g.finished.Load() }

// Done returns a channel closed once the game loop has exited.
func (g *Game) Done() <-chan struct{} { return g.exited }

// Start serves the ball in a random direction, echoes both paddles to their
// owners and launches the game loop. The first tick runs after the warm-up.
func (g *Game) Start() {
	g.startOnce.Do(func() {
		if g.disposed.Load() || g.finished.Load() {
			return
		}
		g.startedAt = time.Now()

		side := multiplayer.SideLeft
		if g.rng.Intn(2) == 1 {
			side = multiplayer.SideRight
		}
		g.aim(side)

		g.left.EmitInit(g.ball.Radius())
		g.right.EmitInit(g.ball.Radius())

		g.warmup = time.NewTimer(g.cfg.WarmupDelay)
		g.started.Store(true)
		g.logger.Info("game started", "left", g.left.User(), "right", g.right.User())
		go g.run()
	})
}

// Move queues a paddle move for the owner of conn. Moves that do not fit
// the buffer are dropped; the next one supersedes them anyway.
func (g *Game) Move(conn multiplayer.ConnID, position core.Vector3) {
	if g.finished.Load() || g.disposed.Load() {
		return
	}
	if !g.started.Load() {
		g.applyMove(moveInput{conn: conn, position: position})
		return
	}
	select {
	case g.inputs <- moveInput{conn: conn, position: position}:
	default:
	}
}

// Forfeit ends the game in favour of the opponent of conn's player. It
// returns after the forfeit has been applied or the loop has exited.
func (g *Game) Forfeit(conn multiplayer.ConnID) {
	if g.finished.Load() || g.disposed.Load() {
		return
	}
	if !g.started.Load() {
		g.forfeit(conn)
		g.notifyFinished()
		return
	}

	req := forfeitRequest{conn: conn, done: make(chan struct{})}
	select {
	case g.forfeits <- req:
	case <-g.exited:
		return
	}
	select {
	case <-req.done:
	case <-g.exited:
	}
}

// Dispose stops the loop, waits for it to exit and releases every timer,
// the ball and both players. Safe to call more than once.
func (g *Game) Dispose() {
	g.disposed.Store(true)
	g.stopOnce.Do(func() {
		close(g.stop)
	})
	if g.started.Load() {
		<-g.exited
		return
	}
	g.release()
}

func (g *Game) run() {
	defer func() {
		g.release()
		close(g.exited)
		g.notifyFinished()
	}()

	for {
		select {
		case <-g.stop:
			return

		case <-g.warmupC():
			g.warmup = nil
			g.ticker = time.NewTicker(time.Second / time.Duration(max(1, g.cfg.TickRate)))
			g.lastTick = time.Now()

		case now := <-g.tickC():
			g.tick(now)

		case <-g.ball.RearmC():
			g.ball.Rearm()

		case in := <-g.inputs:
			g.applyMove(in)

		case req := <-g.forfeits:
			g.forfeit(req.conn)
			close(req.done)
		}

		if g.finished.Load() {
			return
		}
	}
}

func (g *Game) warmupC() <-chan time.Time {
	if g.warmup == nil {
		return nil
	}
	return g.warmup.C
}

func (g *Game) tickC() <-chan time.Time {
	if g.ticker == nil {
		return nil
	}
	return g.ticker.C
}

// tick advances the simulation by the wall-clock time since the last tick.
func (g *Game) tick(now time.Time) {
	dt := now.Sub(g.lastTick)
	g.lastTick = now
	g.step(dt)
}

func (g *Game) step(dt time.Duration) {
	if g.finished.Load() {
		return
	}
	g.emit()
	g.ball.Advance(dt)
	g.resolveCollisions()
	if !g.finished.Load() {
		g.emit()
	}
}

func (g *Game) emit() {
	g.ball.Emit()
	g.left.EmitPosition()
	g.right.EmitPosition()
}

// resolveCollisions checks paddles before the arena. A paddle hit skips the
// arena check for this tick.
func (g *Game) resolveCollisions() {
	for _, p := range []*Player{g.left, g.right} {
		if p.CheckCollision(g.ball) {
			g.paddleHit(p)
			return
		}
	}

	switch g.arena.CheckCollision(g.ball) {
	case CollisionBounce:
		g.ball.InvertZ()
	case CollisionGoal:
		g.goal()
	case CollisionNone:
	}
}

// paddleHit returns the ball into the field. Off-center hits curve the
// ball; the order of slide and invert differs above and below center.
func (g *Game) paddleHit(p *Player) {
	bz, pz := g.ball.Position().Z, p.Position().Z
	switch {
	case bz > pz:
		g.ball.Slide()
		g.ball.InvertX()
	case bz < pz:
		g.ball.InvertX()
		g.ball.Slide()
	default:
		g.ball.InvertX()
	}

	pos := g.ball.Position()
	if p.Side() == multiplayer.SideLeft {
		pos.X = p.Position().X + p.Width()
	} else {
		pos.X = p.Position().X - p.Width()
	}
	g.ball.SetPosition(pos)
	g.ball.IncreaseSpeed()
}

// goal scores for the side opposite the crossed goal line.
func (g *Game) goal() {
	scorer := g.left
	if g.ball.Position().X < 0 {
		scorer = g.right
	}

	if scorer.AddScore() {
		g.finish(multiplayer.MatchEndReasonCompleted)
		return
	}

	score := multiplayer.ScoreEvent{Left: g.left.Score(), Right: g.right.Score()}
	g.left.Notify(score)
	g.right.Notify(score)

	g.left.Reset()
	g.right.Reset()
	g.ball.Reset()
	g.aim(scorer.Side())
}

// aim points the ball toward side at a random angle within the serve cone.
func (g *Game) aim(side multiplayer.Side) {
	angle := core.Radians((g.rng.Float64()*2 - 1) * g.cfg.ServeAngle)
	dx := math.Cos(angle)
	if side == multiplayer.SideLeft {
		dx = -dx
	}
	g.ball.SetDirection(core.Vec3(dx, 0, math.Sin(angle)))
}

func (g *Game) applyMove(in moveInput) {
	if g.finished.Load() {
		return
	}
	if p := g.playerByConn(in.conn); p != nil {
		p.Move(in.position)
	}
}

func (g *Game) forfeit(conn multiplayer.ConnID) {
	if g.finished.Load() {
		return
	}
	quitter := g.playerByConn(conn)
	if quitter == nil {
		g.logger.Warn("forfeit from unknown connection", "conn", conn)
		return
	}
	winner := quitter.Opponent()

	quitter.forceResult(0, false)
	winner.forceResult(g.cfg.WinScore, true)
	quitter.EmitForfeit()
	g.finish(multiplayer.MatchEndReasonForfeit)
}

func (g *Game) playerByConn(id multiplayer.ConnID) *Player {
	for _, p := range []*Player{g.left, g.right} {
		if c := p.Conn(); c != nil && c.ID() == id {
			return p
		}
	}
	return nil
}

// finish runs at most once per game. It notifies both players and hands the
// result to the match recorder without waiting for it.
func (g *Game) finish(reason multiplayer.MatchEndReason) {
	if !g.finished.CompareAndSwap(false, true) {
		return
	}

	winner, loser := g.left, g.right
	switch {
	case g.right.IsWinner():
		winner, loser = g.right, g.left
	case g.left.IsWinner():
	case g.right.Score() > g.left.Score():
		winner, loser = g.right, g.left
	}
	winner.EmitWin()
	loser.EmitLose()

	var duration time.Duration
	if !g.startedAt.IsZero() {
		duration = time.Since(g.startedAt)
	}
	result := multiplayer.MatchResult{
		MatchID:  g.id,
		Score:    [2]int{g.right.Score(), g.left.Score()},
		WinnerID: winner.User(),
		LoserID:  loser.User(),
		Reason:   reason,
		Duration: duration,
		EndedAt:  time.Now(),
	}
	g.result = &result

	g.logger.Info("game finished",
		"reason", reason,
		"winner", result.WinnerID,
		"loser", result.LoserID,
		"right", result.Score[0],
		"left", result.Score[1],
	)
	g.report(result)
}

// report records the result in the background, retrying with a linear backoff.
func (g *Game) report(result multiplayer.MatchResult) {
	if g.recorder == nil {
		return
	}
	attempts := max(1, g.recCfg.Attempts)
	if g.reports != nil {
		g.reports.Add(1)
	}
	go func() {
		if g.reports != nil {
			defer g.reports.Done()
		}
		for attempt := 1; attempt <= attempts; attempt++ {
			ctx, cancel := g.recordContext()
			record, err := g.recorder.RecordMatch(ctx, result)
			cancel()
			if err == nil {
				g.logger.Debug("match recorded", "record", record.ID)
				return
			}
			g.logger.Warn("cannot record match", "attempt", attempt, "err", err)
			if attempt < attempts {
				time.Sleep(g.recCfg.Backoff * time.Duration(attempt))
			}
		}
		g.logger.Error("giving up on recording match", "attempts", attempts)
	}()
}

func (g *Game) recordContext() (context.Context, context.CancelFunc) {
	if g.recCfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), g.recCfg.Timeout)
	}
	return context.WithCancel(context.Background())
}

func (g *Game) notifyFinished() {
	if g.result != nil && g.onFinish != nil {
		g.onFinish(*g.result)
	}
}

// release stops every timer and drops the ball and players. Runs once.
func (g *Game) release() {
	g.releaseOnce.Do(func() {
		if g.ticker != nil {
			g.ticker.Stop()
			g.ticker = nil
		}
		if g.warmup != nil {
			g.warmup.Stop()
			g.warmup = nil
		}
		g.ball.Dispose()
		g.left.Dispose()
		g.right.Dispose()
	})
}
