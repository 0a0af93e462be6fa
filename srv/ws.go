package srv

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // every origin is accepted; corsMiddleware only sets CORS response headers and rejects nothing
}

// wsConn is one player's live WebSocket connection: one reader goroutine
// and one writer goroutine serializing sends onto the socket, fed by the
// player's ConnectionManager channel.
type wsConn struct {
	player *Player
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// HandleWS upgrades the request, authenticates via the session cookie,
// and drives the connection until it closes. 403 if the cookie is absent
// or names an unknown player (spec §6).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.playerIDFromCookie(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusForbidden)
		return
	}
	player, err := s.pool.GetPlayer(playerID)
	if err != nil {
		player, err = s.store.GetPlayer(r.Context(), playerID)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusForbidden)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	ch, err := s.conns.Connect(player, LobbyID)
	if err != nil {
		if kindOf(err) == ErrPlayerAlreadyConnected {
			s.conns.SendConnectionState(player.ID, 4001, "another client already connected")
			warnRecipient(s, player.ID)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(4001, "duplicate connection"))
		}
		_ = conn.Close()
		return
	}

	wc := &wsConn{player: player, conn: conn, send: ch, server: s}

	s.broadcastLobbyPlayerAdded(player)

	go wc.writePump()
	wc.readLoop()
}

// warnRecipient notifies the original session that a second client
// attempted to connect, per spec §7's PlayerAlreadyConnected handling.
func warnRecipient(s *Server, playerID uuid.UUID) {
	s.conns.SendChat(playerID, ChatMessage{
		Content:    "another client attempted to connect to your session",
		PlayerName: "root",
	})
}

func (wc *wsConn) readLoop() {
	defer wc.onDisconnect()

	wc.conn.SetReadLimit(maxMessageSize)
	_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := NewConnectionRateLimiter()

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}

		msgType := peekMessageType(raw)
		allowed, shouldDisconnect := limiter.Allow(msgType)
		if !allowed {
			if shouldDisconnect {
				return
			}
			continue
		}

		room, err := wc.server.pool.GetRoomOfPlayer(wc.player.ID)
		if err != nil {
			continue
		}
		wc.server.dispatchInbound(context.Background(), wc.player, room, raw)
	}
}

func peekMessageType(raw []byte) string {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Payload.Type
}

func (wc *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = wc.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-wc.send:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = wc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// onDisconnect implements spec §4.9: remove from the pool, and broadcast
// the appropriate delta depending on whether the player was in the lobby,
// in an idle room, or in a room with an active game (left untouched, per
// the open-question decision recorded in SPEC_FULL.md).
func (wc *wsConn) onDisconnect() {
	room, _ := wc.server.pool.GetRoomOfPlayer(wc.player.ID)
	wc.server.conns.Disconnect(wc.player.ID)

	if room == nil {
		return
	}
	if room.IsLobby() {
		wc.server.broadcastLobbyPlayerRemoved(wc.player.Name)
		wc.server.systemChat(LobbyID, wc.player.Name+" disconnected")
		return
	}
	room.mu.Lock()
	inProgress := room.Status == RoomInProgress
	room.mu.Unlock()
	if inProgress {
		return // active game: grace, no forfeit (SPEC_FULL.md open question decision)
	}
	wc.server.broadcastRoomPlayerRemoved(room, wc.player.Name)
}
