// Package app hosts the realtime chat surface: an HTTP server upgrading to
// WebSocket sessions, room-based routing, presence and typing state, and the
// frame handlers that drive the message lifecycle and automated replies.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kothaapp/kotha/internal/chat/auth"
	"github.com/kothaapp/kotha/internal/chat/automation"
	"github.com/kothaapp/kotha/internal/chat/chats"
	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/message"
	"github.com/kothaapp/kotha/internal/chat/storage"
	"github.com/kothaapp/kotha/internal/chat/storage/sqlite"
)

const (
	tokenCookieName = "kotha_token"

	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// Config defines the inputs for the realtime chat process.
type Config struct {
	HTTPAddr          string
	DBPath            string
	JWTSecret         string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
	scheduler       *automation.Scheduler
}

// identityContextKey carries the authenticated identity from the HTTP
// upgrade check into the WebSocket handler.
type identityContextKey struct{}

// NewServer builds a configured chat server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	verifier, err := auth.NewVerifier(config.JWTSecret, store, nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init connection verifier: %w", err)
	}

	core, err := newCore(store, verifier, nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           core.handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
		scheduler:       core.scheduler,
	}, nil
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources, cancelling pending automated replies.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close chat store: %v", err)
		}
	}
}

// core bundles the realtime components behind the socket surface.
type core struct {
	store     storage.Store
	verifier  *auth.Verifier
	messages  *message.Service
	chats     *chats.Service
	engine    *automation.Engine
	scheduler *automation.Scheduler
	hub       *roomHub
	presence  *presenceRegistry
	typing    *typingTracker
}

func newCore(store storage.Store, verifier *auth.Verifier, now func() time.Time) (*core, error) {
	messages, err := message.NewService(store, now)
	if err != nil {
		return nil, fmt.Errorf("init message service: %w", err)
	}
	chatService, err := chats.NewService(store, now)
	if err != nil {
		return nil, fmt.Errorf("init chats service: %w", err)
	}
	return &core{
		store:     store,
		verifier:  verifier,
		messages:  messages,
		chats:     chatService,
		engine:    automation.NewEngine(store, now),
		scheduler: automation.NewScheduler(nil),
		hub:       newRoomHub(),
		presence:  newPresenceRegistry(),
		typing:    newTypingTracker(),
	}, nil
}

// handler builds the HTTP routes. Authentication happens at the upgrade:
// the WebSocket handler is only attached once the credential resolved to a
// verified identity.
func (c *core) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		c.handleConn(conn)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		identity, err := c.verifier.VerifyConnection(r.Context(), accessTokenFromRequest(r))
		if err != nil {
			log.Printf("websocket unauthorized: remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

// accessTokenFromRequest reads the connection credential from the
// Authorization header or the kotha_token cookie.
func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func identityFromConn(conn *websocket.Conn) (domain.Identity, bool) {
	request := conn.Request()
	if request == nil {
		return domain.Identity{}, false
	}
	identity, ok := request.Context().Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}
