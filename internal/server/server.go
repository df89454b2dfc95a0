package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/genricoloni/nowplayingd/internal/playback"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CoverSource supplies the latest rendered cover card
type CoverSource interface {
	Latest() ([]byte, bool)
}

// Server exposes the playback state over HTTP and WebSocket
type Server struct {
	logger   *zap.Logger
	addr     string
	hub      *broadcast.Hub
	state    *playback.State
	covers   CoverSource
	upgrader websocket.Upgrader
	router   *mux.Router

	httpServer  *http.Server
	listener    net.Listener
	connections atomic.Int64

	// clientCtx ends every websocket session on Stop; hijacked
	// connections are not closed by http.Server.Shutdown
	clientCtx    context.Context
	cancelClient context.CancelFunc
	clients      sync.WaitGroup
}

// New creates the transport. covers may be nil.
func New(logger *zap.Logger, addr string, hub *broadcast.Hub, state *playback.State, covers CoverSource) *Server {
	s := &Server{
		logger: logger,
		addr:   addr,
		hub:    hub,
		state:  state,
		covers: covers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.clientCtx, s.cancelClient = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/now-playing", s.handleNowPlaying).Methods(http.MethodGet)
	api.HandleFunc("/is-playing", s.handleIsPlaying).Methods(http.MethodGet)
	api.HandleFunc("/last-update", s.handleLastUpdate).Methods(http.MethodGet)
	api.HandleFunc("/cover", s.handleCover).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return router
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in a goroutine. A bind failure is returned.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ActiveConnections reports the number of live websocket subscribers
func (s *Server) ActiveConnections() int64 {
	return s.connections.Load()
}

// Stop shuts the HTTP server down and disconnects websocket subscribers
func (s *Server) Stop(ctx context.Context) error {
	s.cancelClient()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("HTTP server stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
