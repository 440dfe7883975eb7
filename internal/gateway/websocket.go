package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/arena/internal/matchmaking"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketServer serves GET /ws?user=<id>[&codec=msgpack] and GET /healthz.
type WebSocketServer struct {
	dispatcher Dispatcher
	logger     *log.Logger
	upgrader   websocket.Upgrader
	server     *http.Server

	mu    sync.Mutex
	conns map[multiplayer.ConnID]*websocket.Conn
	wg    sync.WaitGroup
}

// NewWebSocketServer creates a WebSocket gateway listening on address.
func NewWebSocketServer(address string, d Dispatcher, logger *log.Logger) *WebSocketServer {
	if logger == nil {
		logger = log.Default()
	}
	s := &WebSocketServer{
		dispatcher: d,
		logger:     logger.WithPrefix("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[multiplayer.ConnID]*websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.serveHealth)
	s.server = &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for mounting under httptest.
func (s *WebSocketServer) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *WebSocketServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("gateway: cannot listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *WebSocketServer) Serve(ln net.Listener) error {
	s.logger.Info("starting WebSocket server", "address", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: websocket server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and closes every open socket.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.mu.Lock()
	for _, ws := range s.conns {
		ws.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Active returns the number of open sockets.
func (s *WebSocketServer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *WebSocketServer) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","connections":%d}`, s.Active())
}

func (s *WebSocketServer) serveWS(w http.ResponseWriter, r *http.Request) {
	user := multiplayer.UserID(r.URL.Query().Get("user"))
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	codec, err := multiplayer.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "user", user, "error", err)
		return
	}

	conn := multiplayer.NewChannelConn(newConnID("ws"), eventBuffer)
	s.mu.Lock()
	s.conns[conn.ID()] = ws
	s.mu.Unlock()

	s.logger.Info("connection opened",
		"conn", conn.ID(),
		"user", user,
		"codec", codec.Name(),
		"remote", r.RemoteAddr,
	)
	s.dispatcher.Send(matchmaking.ConnectedMsg{Conn: conn, User: user})

	s.wg.Add(2)
	go s.writePump(ws, conn, codec)
	go s.readPump(ws, conn, codec, user)
}

func (s *WebSocketServer) readPump(ws *websocket.Conn, conn *multiplayer.ChannelConn, codec multiplayer.Codec, user multiplayer.UserID) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		ws.Close()
		s.mu.Lock()
		delete(s.conns, conn.ID())
		s.mu.Unlock()
		s.dispatcher.Send(matchmaking.DisconnectedMsg{ConnID: conn.ID()})
		s.logger.Info("connection closed", "conn", conn.ID(), "user", user)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "conn", conn.ID(), "error", err)
			}
			return
		}
		forward(s.dispatcher, codec, conn, frame)
	}
}

func (s *WebSocketServer) writePump(ws *websocket.Conn, conn *multiplayer.ChannelConn, codec multiplayer.Codec) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	msgType := websocket.TextMessage
	if codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case evt := <-conn.Events():
			frame, err := codec.Encode(evt)
			if err != nil {
				s.logger.Error("encode failed", "conn", conn.ID(), "event", evt.EventName(), "error", err)
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(msgType, frame); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
