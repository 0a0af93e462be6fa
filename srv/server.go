package srv

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config is the full set of runtime parameters the server needs, sourced
// from the environment by internal/config.
type Config struct {
	CookieName     string
	CookieExpiry   time.Duration
	CORSOrigins    []string
	Delays         LoopDelays
	ReaperInterval time.Duration
	ReaperDelay    time.Duration
	RootID         uuid.UUID
}

// Server holds every shared collaborator the HTTP and WebSocket surfaces
// depend on: the in-memory pool, the connection fan-out, active games,
// persistence, and the dictionary client.
type Server struct {
	pool    *PlayerRoomPool
	conns   *ConnectionManager
	games   *GameManager
	store   Store
	dict    WordChecker
	buffers *roomBuffers
	stats   *statsCache

	delays       LoopDelays
	cookieName   string
	cookieMaxAge time.Duration
	corsOrigins  []string
	rootID       uuid.UUID

	reaperInterval time.Duration
	reaperDelay    time.Duration

	shutdownCtx context.Context
	shutdown    context.CancelFunc
}

// New wires a Server from its collaborators. store and dict are supplied
// by the caller (internal/db and internal/dictionary respectively) so this
// package stays free of any concrete driver or HTTP client dependency.
func New(cfg Config, store Store, dict WordChecker) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPlayerRoomPool()
	return &Server{
		pool:           pool,
		conns:          NewConnectionManager(pool),
		games:          NewGameManager(),
		store:          store,
		dict:           dict,
		buffers:        newRoomBuffers(),
		stats:          &statsCache{},
		delays:         cfg.Delays,
		cookieName:     cfg.CookieName,
		cookieMaxAge:   cfg.CookieExpiry,
		corsOrigins:    cfg.CORSOrigins,
		rootID:         cfg.RootID,
		reaperInterval: cfg.ReaperInterval,
		reaperDelay:    cfg.ReaperDelay,
		shutdownCtx:    ctx,
		shutdown:       cancel,
	}
}

// systemChat persists and broadcasts a message attributed to the root
// pseudo-user (spec §3's fixed-UUID Root player), used for turn/lifecycle
// announcements that have no human author.
func (s *Server) systemChat(roomID int, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, createdOn, err := s.store.InsertMessage(ctx, roomID, s.rootID, content)
	if err != nil {
		slog.Error("persist system chat failed", "room_id", roomID, "err", err)
	}
	s.conns.BroadcastChat(roomID, ChatMessage{
		ID: id, CreatedOn: &createdOn, Content: content, PlayerName: "root", RoomID: roomID,
	})
}

// Shutdown cancels the context every game loop and the reaper observe,
// letting in-flight loops exit without persisting (spec §9).
func (s *Server) Shutdown() { s.shutdown() }

// Serve wires the HTTP mux and starts listening. The reaper is launched
// as a background goroutine alongside it.
func (s *Server) Serve(addr string) error {
	go s.RunReaper(s.shutdownCtx, s.reaperInterval, s.reaperDelay)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /connect", s.HandleWS)

	mux.HandleFunc("GET /players/me", s.HandleMe)
	mux.HandleFunc("POST /players", s.HandleCreatePlayer)
	mux.HandleFunc("POST /players/login", s.HandleLogin)
	mux.HandleFunc("POST /players/logout", s.HandleLogout)

	mux.HandleFunc("GET /stats", s.HandleStats)

	mux.HandleFunc("POST /rooms", s.HandleCreateRoom)
	mux.HandleFunc("PUT /rooms/{id}", s.HandleModifyRoom)
	mux.HandleFunc("POST /rooms/{id}/join", s.HandleJoinRoom)
	mux.HandleFunc("POST /rooms/{id}/leave", s.HandleLeaveRoom)
	mux.HandleFunc("POST /rooms/{id}/status", s.HandleToggleStatus)
	mux.HandleFunc("POST /rooms/{id}/ready", s.HandleReady)
	mux.HandleFunc("POST /rooms/{id}/return", s.HandleReturn)
	mux.HandleFunc("POST /rooms/{id}/players/{name}/kick", s.HandleKick)
	mux.HandleFunc("POST /rooms/{id}/start", s.HandleStartGame)

	slog.Info("starting server", "addr", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(mux))
}
