package srv

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const maxRoomNameLen = 32

// CreateRoom validates name uniqueness and rules, registers the room,
// sets owner membership, and broadcasts the resulting lobby delta.
func (s *Server) CreateRoom(ctx context.Context, owner *Player, name string, capacity int, rules DeathmatchRules) (*Room, error) {
	if name == "" || len(name) > maxRoomNameLen {
		return nil, codedErrorf(ErrValidation, "room name must be 1-%d characters", maxRoomNameLen)
	}
	if capacity < 1 || capacity > 10 {
		return nil, codedErrorf(ErrValidation, "capacity must be between 1 and 10")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	room := &Room{
		Name:         name,
		Capacity:     capacity,
		Status:       RoomOpen,
		Rules:        rules,
		OwnerID:      owner.ID,
		OwnerName:    owner.Name,
		CreatedOn:    time.Now(),
		LastActiveOn: time.Now(),
	}
	if err := s.pool.CreateRoom(room); err != nil {
		return nil, err
	}
	if err := s.conns.MovePlayer(owner.ID, LobbyID, room.ID); err != nil {
		s.pool.RemoveRoom(room.ID)
		return nil, err
	}
	if err := s.store.CreateRoomRecord(ctx, room.ID, room.Name); err != nil {
		return nil, err
	}

	s.broadcastLobbyRoomAdded(room)
	s.broadcastLobbyPlayerRemoved(owner.Name)
	s.broadcastRoomFull(room)
	return room, nil
}

// ModifyRoom updates a room's capacity and rules (owner-only), requiring
// the new capacity be at least the current member count, resetting every
// member's readiness, and announcing the change in chat.
func (s *Server) ModifyRoom(room *Room, requester uuid.UUID, capacity int, rules DeathmatchRules) error {
	if err := rules.Validate(); err != nil {
		return err
	}

	room.mu.Lock()
	if room.OwnerID != requester {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "only the owner may modify room settings")
	}
	if capacity < len(room.Members) {
		room.mu.Unlock()
		return codedErrorf(ErrValidation, "capacity cannot be less than current member count")
	}
	room.Capacity = capacity
	room.Rules = rules
	for _, m := range room.Members {
		m.Ready = false
	}
	room.mu.Unlock()

	s.systemChat(room.ID, "game settings have been changed")
	s.broadcastRoomFull(room)
	return nil
}

// JoinRoom moves a player from the Lobby into room, requiring it be Open
// and not full.
func (s *Server) JoinRoom(room *Room, player *Player) error {
	room.mu.Lock()
	if room.Status != RoomOpen {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "room is not open")
	}
	if len(room.Members) >= room.Capacity {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "room is full")
	}
	room.mu.Unlock()

	if err := s.conns.MovePlayer(player.ID, LobbyID, room.ID); err != nil {
		return err
	}
	room.mu.Lock()
	room.LastActiveOn = time.Now()
	room.mu.Unlock()

	s.broadcastRoomFull(room)
	s.broadcastLobbyPlayerRemoved(player.Name)
	s.broadcastLobbyRoomUpdated(room)
	return nil
}

// LeaveRoom moves a player back to the Lobby. If the owner leaves a
// Closed room, the room flips to Open first; ownership is otherwise kept
// even once the owner is gone (no re-election in this source).
func (s *Server) LeaveRoom(room *Room, player *Player) error {
	if room.IsLobby() {
		return codedErrorf(ErrBadState, "cannot leave the lobby")
	}
	room.mu.Lock()
	if room.OwnerID == player.ID && room.Status == RoomClosed {
		room.Status = RoomOpen
	}
	room.mu.Unlock()

	if err := s.conns.MovePlayer(player.ID, room.ID, LobbyID); err != nil {
		return err
	}

	s.broadcastRoomPlayerRemoved(room, player.Name)
	s.broadcastLobbyPlayerAdded(player)
	s.broadcastLobbyRoomUpdated(room)
	return nil
}

// ToggleRoomStatus flips Open↔Closed; owner-only.
func (s *Server) ToggleRoomStatus(room *Room, requester uuid.UUID) error {
	room.mu.Lock()
	if room.OwnerID != requester {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "only the owner may toggle room status")
	}
	switch room.Status {
	case RoomOpen:
		room.Status = RoomClosed
	case RoomClosed:
		room.Status = RoomOpen
	default:
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "room status cannot be toggled while in progress")
	}
	room.mu.Unlock()

	s.broadcastRoomFull(room)
	s.broadcastLobbyRoomUpdated(room)
	return nil
}

// ToggleReady flips a member's own readiness flag.
func (s *Server) ToggleReady(room *Room, playerID uuid.UUID) error {
	room.mu.Lock()
	m, ok := room.Members[playerID]
	if !ok {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "not a member of this room")
	}
	m.Ready = !m.Ready
	room.mu.Unlock()

	s.broadcastRoomFull(room)
	return nil
}

// ReturnFromGame clears a player's in-game flag once they leave the
// post-game screen.
func (s *Server) ReturnFromGame(room *Room, playerID uuid.UUID) error {
	room.mu.Lock()
	m, ok := room.Members[playerID]
	if !ok {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "not a member of this room")
	}
	m.InGame = false
	room.mu.Unlock()

	s.broadcastRoomFull(room)
	return nil
}

// Kick removes target from room (owner-only), notifying them with a
// one-shot KICK_PLAYER action before moving them to the Lobby.
func (s *Server) Kick(room *Room, requester, target uuid.UUID, targetName string) error {
	if requester == target {
		return codedErrorf(ErrValidation, "owner cannot kick themselves")
	}

	room.mu.Lock()
	if room.OwnerID != requester {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "only the owner may kick")
	}
	if _, ok := room.Members[target]; !ok {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "target is not a member of this room")
	}
	room.mu.Unlock()

	s.conns.SendAction(target, actionKickPlayer)
	if err := s.conns.MovePlayer(target, room.ID, LobbyID); err != nil {
		return err
	}

	s.broadcastRoomPlayerRemoved(room, targetName)
	if p, err := s.pool.GetPlayer(target); err == nil {
		s.broadcastLobbyPlayerAdded(p)
	}
	s.broadcastLobbyRoomUpdated(room)
	return nil
}

// StartGame requires every member ready, mints a persisted game record,
// constructs the Deathmatch, and spawns its loop detached.
func (s *Server) StartGame(ctx context.Context, room *Room, requester uuid.UUID) error {
	room.mu.Lock()
	if room.OwnerID != requester {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "only the owner may start the game")
	}
	if room.Status != RoomOpen {
		room.mu.Unlock()
		return codedErrorf(ErrBadState, "room is not open")
	}
	for _, m := range room.Members {
		if !m.Ready {
			room.mu.Unlock()
			return codedErrorf(ErrBadState, "all members must be ready")
		}
	}
	rules := room.Rules
	players := make([]*Player, 0, len(room.Members))
	playerIDs := make([]uuid.UUID, 0, len(room.Members))
	for _, m := range room.Members {
		players = append(players, m.Player)
		playerIDs = append(playerIDs, m.Player.ID)
	}
	room.mu.Unlock()

	gameID, err := s.store.CreateGameRecord(ctx, room.ID, rules, playerIDs)
	if err != nil {
		return err
	}

	game := NewDeathmatch(gameID, room.ID, players, rules, s.dict)
	s.games.Create(game)

	room.mu.Lock()
	room.Status = RoomInProgress
	room.GameID = gameID
	for _, m := range room.Members {
		m.Ready = false
		m.InGame = true
	}
	room.mu.Unlock()

	s.broadcastRoomFull(room)
	s.broadcastLobbyRoomUpdated(room)

	buf := NewWordInputBuffer()
	s.buffers.set(room.ID, buf)

	loopCtx := s.shutdownCtx
	go s.runGameLoop(loopCtx, room, game, buf)
	return nil
}

// reopenRoomAfterGame is called by the game loop once a Deathmatch ends:
// the room returns to Open and the lobby/room deltas are broadcast.
func (s *Server) reopenRoomAfterGame(room *Room) {
	room.mu.Lock()
	room.Status = RoomOpen
	room.GameID = 0
	room.mu.Unlock()

	s.buffers.delete(room.ID)
	s.broadcastRoomFull(room)
	s.broadcastLobbyRoomUpdated(room)
}

func (s *Server) broadcastRoomFull(room *Room) {
	room.mu.Lock()
	capacity, status, rules := room.Capacity, room.Status, room.Rules
	players := make(map[string]*RoomPlayerOut, len(room.Members))
	for _, m := range room.Members {
		players[m.Player.Name] = &RoomPlayerOut{Name: m.Player.Name, Ready: m.Ready, InGame: m.InGame}
	}
	room.mu.Unlock()

	s.conns.BroadcastRoomState(room.ID, RoomStateMsg{
		ID: room.ID, Name: room.Name, Capacity: capacity, Status: status,
		Rules: rules, OwnerName: room.OwnerName, Players: players,
	})
}

func (s *Server) broadcastRoomPlayerRemoved(room *Room, name string) {
	room.mu.Lock()
	capacity, status, rules := room.Capacity, room.Status, room.Rules
	room.mu.Unlock()

	s.conns.BroadcastRoomState(room.ID, RoomStateMsg{
		ID: room.ID, Name: room.Name, Capacity: capacity, Status: status,
		Rules: rules, OwnerName: room.OwnerName,
		Players: map[string]*RoomPlayerOut{name: nil},
	})
}

func (s *Server) broadcastLobbyRoomAdded(room *Room) {
	room.mu.Lock()
	capacity, status, rules := room.Capacity, room.Status, room.Rules
	room.mu.Unlock()

	s.conns.BroadcastLobbyState(LobbyStateMsg{
		Rooms: map[string]*RoomOut{
			strconv.Itoa(room.ID): {ID: room.ID, Name: room.Name, Capacity: capacity, Status: status, OwnerName: room.OwnerName, Rules: rules},
		},
	})
}

func (s *Server) broadcastLobbyRoomUpdated(room *Room) {
	room.mu.Lock()
	capacity, status, rules := room.Capacity, room.Status, room.Rules
	room.mu.Unlock()

	s.conns.BroadcastLobbyState(LobbyStateMsg{
		Rooms: map[string]*RoomOut{
			strconv.Itoa(room.ID): {ID: room.ID, Name: room.Name, Capacity: capacity, Status: status, OwnerName: room.OwnerName, Rules: rules},
		},
	})
}

func (s *Server) broadcastLobbyPlayerRemoved(name string) {
	s.conns.BroadcastLobbyState(LobbyStateMsg{Players: map[string]*LobbyPlayerOut{name: nil}})
}

func (s *Server) broadcastLobbyPlayerAdded(p *Player) {
	s.conns.BroadcastLobbyState(LobbyStateMsg{Players: map[string]*LobbyPlayerOut{p.Name: {Name: p.Name}}})
}
