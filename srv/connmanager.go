package srv

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// sendBufferSize bounds each connection's outbound channel; a recipient
// slow enough to fill it gets its broadcasts dropped rather than stalling
// every other connection's writer goroutine. Overflow only drops the
// message; the connection itself is left open.
const sendBufferSize = 256

// ConnectionManager owns the outbound channel for every connected player
// and fans broadcasts out to room or lobby membership, read through the
// PlayerRoomPool. It does not itself own membership, only per-player
// serialization of sends.
type ConnectionManager struct {
	pool *PlayerRoomPool

	mu    sync.Mutex
	conns map[uuid.UUID]chan []byte
}

// NewConnectionManager returns a manager backed by pool.
func NewConnectionManager(pool *PlayerRoomPool) *ConnectionManager {
	return &ConnectionManager{pool: pool, conns: make(map[uuid.UUID]chan []byte)}
}

// Connect registers player into the pool at roomID and opens their
// outbound channel. Fails with ErrPlayerAlreadyConnected if a live
// connection for this player already exists.
func (cm *ConnectionManager) Connect(player *Player, roomID int) (chan []byte, error) {
	cm.mu.Lock()
	if _, ok := cm.conns[player.ID]; ok {
		cm.mu.Unlock()
		return nil, codedErrorf(ErrPlayerAlreadyConnected, "player %s already has a live connection", player.ID)
	}
	ch := make(chan []byte, sendBufferSize)
	cm.conns[player.ID] = ch
	cm.mu.Unlock()

	if err := cm.pool.AddPlayer(player, roomID); err != nil {
		cm.mu.Lock()
		delete(cm.conns, player.ID)
		cm.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

// Disconnect removes playerID from the pool and closes its channel.
// Idempotent against a player already removed.
func (cm *ConnectionManager) Disconnect(playerID uuid.UUID) {
	cm.mu.Lock()
	ch, ok := cm.conns[playerID]
	if ok {
		delete(cm.conns, playerID)
	}
	cm.mu.Unlock()
	if ok {
		close(ch)
	}
	_ = cm.pool.RemovePlayer(playerID)
}

// Connected reports whether a player currently has a live connection.
func (cm *ConnectionManager) Connected(playerID uuid.UUID) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.conns[playerID]
	return ok
}

func (cm *ConnectionManager) send(playerID uuid.UUID, payload []byte) {
	cm.mu.Lock()
	ch, ok := cm.conns[playerID]
	cm.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- payload:
	default:
		slog.Warn("dropped message, send buffer full", "player_id", playerID)
	}
}

func (cm *ConnectionManager) fanOut(ids []uuid.UUID, payload []byte) {
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id uuid.UUID) {
			defer wg.Done()
			cm.send(id, payload)
		}(id)
	}
	wg.Wait()
}

// BroadcastChat persists nothing itself (the router persists before
// calling this); it fans the chat payload out to every member of roomID.
func (cm *ConnectionManager) BroadcastChat(roomID int, msg ChatMessage) {
	msg.Type = "chat"
	players, err := cm.pool.GetRoomPlayers(roomID)
	if err != nil {
		return
	}
	payload := encode(msg)
	cm.fanOut(idsOf(players), payload)
}

// BroadcastLobbyState fans a partial lobby delta out to every lobby
// member.
func (cm *ConnectionManager) BroadcastLobbyState(delta LobbyStateMsg) {
	delta.Type = "lobby_state"
	players, err := cm.pool.GetRoomPlayers(LobbyID)
	if err != nil {
		return
	}
	payload := encode(delta)
	cm.fanOut(idsOf(players), payload)
}

// BroadcastRoomState fans a room snapshot/delta out to every member of
// roomID.
func (cm *ConnectionManager) BroadcastRoomState(roomID int, msg RoomStateMsg) {
	msg.Type = "room_state"
	players, err := cm.pool.GetRoomPlayers(roomID)
	if err != nil {
		return
	}
	payload := encode(msg)
	cm.fanOut(idsOf(players), payload)
}

// BroadcastGameState fans a game-state payload out to every member of
// roomID.
func (cm *ConnectionManager) BroadcastGameState(roomID int, msg GameStateMsg) {
	msg.Type = "game_state"
	players, err := cm.pool.GetRoomPlayers(roomID)
	if err != nil {
		return
	}
	payload := encode(msg)
	cm.fanOut(idsOf(players), payload)
}

// SendChat delivers a chat payload to a single recipient.
func (cm *ConnectionManager) SendChat(playerID uuid.UUID, msg ChatMessage) {
	msg.Type = "chat"
	cm.send(playerID, encode(msg))
}

// SendConnectionState delivers a transport-level notice to one
// connection.
func (cm *ConnectionManager) SendConnectionState(playerID uuid.UUID, code int, reason string) {
	cm.send(playerID, encode(ConnectionStateMsg{Type: "connection_state", Code: code, Reason: reason}))
}

// SendAction delivers a one-shot directive to one connection.
func (cm *ConnectionManager) SendAction(playerID uuid.UUID, action string) {
	cm.send(playerID, encode(ActionMsg{Type: "action", Action: action}))
}

// MovePlayer validates source membership and target existence, clears
// ready/in-game flags via the pool, and moves the player from fromRoomID
// to toRoomID.
func (cm *ConnectionManager) MovePlayer(playerID uuid.UUID, fromRoomID, toRoomID int) error {
	return cm.pool.MovePlayer(playerID, fromRoomID, toRoomID)
}

func idsOf(players []*Player) []uuid.UUID {
	ids := make([]uuid.UUID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}
