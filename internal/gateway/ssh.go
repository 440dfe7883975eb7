package gateway

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/vovakirdan/arena/internal/matchmaking"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

// SSHConfig holds configuration for the SSH gateway.
type SSHConfig struct {
	// Address is the host:port to listen on (e.g., ":23235").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.arena/host_key.
	HostKeyPath string

	// IdleTimeout closes sessions that send nothing for this long.
	IdleTimeout time.Duration
}

// SSHServer speaks newline-delimited JSON envelopes over an SSH session.
// The SSH user name is the player identity.
type SSHServer struct {
	config     SSHConfig
	server     *ssh.Server
	dispatcher Dispatcher
	codec      multiplayer.Codec
	logger     *log.Logger
}

// NewSSHServer creates a new SSH gateway with the given configuration.
func NewSSHServer(cfg SSHConfig, d Dispatcher, logger *log.Logger) (*SSHServer, error) {
	if logger == nil {
		logger = log.Default()
	}
	srv := &SSHServer{
		config:     cfg,
		dispatcher: d,
		codec:      multiplayer.JSONCodec{},
		logger:     logger.WithPrefix("ssh"),
	}

	hostKeyPath, err := resolveHostKeyPath(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("gateway: cannot create host key directory: %w", err)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			srv.sessionMiddleware,
			srv.loggingMiddleware,
		),
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.IdleTimeout))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("gateway: cannot create SSH server: %w", err)
	}
	srv.server = server
	return srv, nil
}

func resolveHostKeyPath(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("gateway: cannot get home directory: %w", err)
		}
		return filepath.Join(home, ".arena", "host_key"), nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("gateway: cannot get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// sessionMiddleware runs the line protocol for one session.
func (s *SSHServer) sessionMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.serveSession(sess)
		next(sess)
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.logger.Info("session started",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
		next(sess)
		s.logger.Info("session ended",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
	}
}

func (s *SSHServer) serveSession(sess ssh.Session) {
	user := multiplayer.UserID(sess.User())
	if user == "" {
		fmt.Fprintln(sess.Stderr(), "a user name is required")
		return
	}

	conn := multiplayer.NewChannelConn(newConnID("ssh"), eventBuffer)
	s.dispatcher.Send(matchmaking.ConnectedMsg{Conn: conn, User: user})

	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writeLoop(sess, conn)
	}()

	scanner := bufio.NewScanner(sess)
	scanner.Buffer(make([]byte, 0, 1024), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		forward(s.dispatcher, s.codec, conn, line)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("read error", "conn", conn.ID(), "error", err)
	}

	conn.Close()
	<-written
	s.dispatcher.Send(matchmaking.DisconnectedMsg{ConnID: conn.ID()})
}

func (s *SSHServer) writeLoop(sess ssh.Session, conn *multiplayer.ChannelConn) {
	for {
		select {
		case evt := <-conn.Events():
			frame, err := s.codec.Encode(evt)
			if err != nil {
				s.logger.Error("encode failed", "conn", conn.ID(), "event", evt.EventName(), "error", err)
				continue
			}
			if _, err := sess.Write(append(frame, '\n')); err != nil {
				conn.Close()
				return
			}
		case <-conn.Done():
			return
		case <-sess.Context().Done():
			conn.Close()
			return
		}
	}
}

// ListenAndServe blocks until the server is shut down.
func (s *SSHServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("gateway: cannot listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ln)
}

// Serve accepts sessions on ln until the server is shut down.
func (s *SSHServer) Serve(ln net.Listener) error {
	s.logger.Info("starting SSH server", "address", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("gateway: ssh server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
