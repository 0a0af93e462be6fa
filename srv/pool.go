package srv

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LobbyID is the well-known identifier of the room every player starts in.
// It is pre-seeded before any player joins and is never reaped.
const LobbyID = 1

// PlayerRoomPool is the single authoritative in-memory registry mapping
// player identifiers to Player records and room identifiers to Room
// records. One mutex guards both maps so a lookup never observes a
// player whose room back-reference disagrees with that room's member
// list (spec invariant: every player index entry has exactly one matching
// membership entry in some room).
type PlayerRoomPool struct {
	mu       sync.Mutex
	players  map[uuid.UUID]*Player
	rooms    map[int]*Room
	location map[uuid.UUID]int
	nextRoom int
}

// NewPlayerRoomPool returns a pool with the Lobby pre-seeded.
func NewPlayerRoomPool() *PlayerRoomPool {
	p := &PlayerRoomPool{
		players:  make(map[uuid.UUID]*Player),
		rooms:    make(map[int]*Room),
		location: make(map[uuid.UUID]int),
		nextRoom: LobbyID + 1,
	}
	p.rooms[LobbyID] = &Room{
		ID:           LobbyID,
		Name:         "Lobby",
		Status:       RoomOpen,
		Rules:        DefaultRules(),
		Members:      make(map[uuid.UUID]*RoomMember),
		CreatedOn:    time.Now(),
		LastActiveOn: time.Now(),
	}
	return p
}

// AddPlayer inserts player into both indices, placing them into roomID.
// The room must already exist. Fails with ErrConflict if the player id is
// already present.
func (p *PlayerRoomPool) AddPlayer(player *Player, roomID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.players[player.ID]; exists {
		return codedErrorf(ErrConflict, "player %s already present", player.ID)
	}
	room, ok := p.rooms[roomID]
	if !ok {
		return codedErrorf(ErrNotFound, "room %d does not exist", roomID)
	}
	p.players[player.ID] = player
	p.location[player.ID] = roomID
	room.mu.Lock()
	room.Members[player.ID] = &RoomMember{Player: player}
	room.mu.Unlock()
	return nil
}

// RemovePlayer removes a player from both indices.
func (p *PlayerRoomPool) RemovePlayer(playerID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.players[playerID]; !ok {
		return codedErrorf(ErrNotFound, "player %s not found", playerID)
	}
	if roomID, ok := p.location[playerID]; ok {
		if room, ok := p.rooms[roomID]; ok {
			room.mu.Lock()
			delete(room.Members, playerID)
			room.mu.Unlock()
		}
	}
	delete(p.location, playerID)
	delete(p.players, playerID)
	return nil
}

// GetPlayer is a strict lookup; fails with ErrNotFound if absent.
func (p *PlayerRoomPool) GetPlayer(playerID uuid.UUID) (*Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.players[playerID]
	if !ok {
		return nil, codedErrorf(ErrNotFound, "player %s not found", playerID)
	}
	return pl, nil
}

// PlayerByName looks up a player by their unique display name.
func (p *PlayerRoomPool) PlayerByName(name string) (*Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range p.players {
		if pl.Name == name {
			return pl, nil
		}
	}
	return nil, codedErrorf(ErrNotFound, "player %q not found", name)
}

// GetRoomByID is a strict lookup by room id.
func (p *PlayerRoomPool) GetRoomByID(roomID int) (*Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[roomID]
	if !ok {
		return nil, codedErrorf(ErrNotFound, "room %d not found", roomID)
	}
	return r, nil
}

// GetRoomOfPlayer is a strict lookup of the room a player currently
// occupies.
func (p *PlayerRoomPool) GetRoomOfPlayer(playerID uuid.UUID) (*Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	roomID, ok := p.location[playerID]
	if !ok {
		return nil, codedErrorf(ErrNotFound, "player %s is not in any room", playerID)
	}
	return p.rooms[roomID], nil
}

// GetRoomPlayers returns a snapshot of the players currently in roomID;
// order is unspecified.
func (p *PlayerRoomPool) GetRoomPlayers(roomID int) ([]*Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[roomID]
	if !ok {
		return nil, codedErrorf(ErrNotFound, "room %d not found", roomID)
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make([]*Player, 0, len(room.Members))
	for _, m := range room.Members {
		out = append(out, m.Player)
	}
	return out, nil
}

// CreateRoom inserts a newly created room, allocating its id. Fails with
// ErrConflict if a room with the same name already exists.
func (p *PlayerRoomPool) CreateRoom(r *Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.rooms {
		if existing.Name == r.Name {
			return codedErrorf(ErrConflict, "room name %q already taken", r.Name)
		}
	}
	r.ID = p.nextRoom
	p.nextRoom++
	if r.Members == nil {
		r.Members = make(map[uuid.UUID]*RoomMember)
	}
	p.rooms[r.ID] = r
	return nil
}

// RemoveRoom deletes a room. Fails with ErrConflict if it still has
// members, or if the caller tries to remove the Lobby.
func (p *PlayerRoomPool) RemoveRoom(roomID int) error {
	if roomID == LobbyID {
		return codedErrorf(ErrConflict, "the lobby cannot be removed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[roomID]
	if !ok {
		return codedErrorf(ErrNotFound, "room %d not found", roomID)
	}
	room.mu.Lock()
	empty := len(room.Members) == 0
	room.mu.Unlock()
	if !empty {
		return codedErrorf(ErrConflict, "room %d still has members", roomID)
	}
	delete(p.rooms, roomID)
	return nil
}

// GetRooms returns every room except the Lobby.
func (p *PlayerRoomPool) GetRooms() []*Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Room, 0, len(p.rooms))
	for id, r := range p.rooms {
		if id == LobbyID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ActiveRooms returns len(rooms)-1, excluding the Lobby.
func (p *PlayerRoomPool) ActiveRooms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms) - 1
}

// MovePlayer transfers a player from from to dst, clearing their
// ready/in-game flags. Fails with ErrNotFound if dst doesn't exist, or
// ErrNotInRoom if the player isn't currently tracked as being in from
// (a stale caller-assumed source room, per spec's two-argument
// move_player contract).
func (p *PlayerRoomPool) MovePlayer(playerID uuid.UUID, from, dst int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.location[playerID]
	if !ok || src != from {
		return codedErrorf(ErrNotInRoom, "player %s is not in room %d", playerID, from)
	}
	dstRoom, ok := p.rooms[dst]
	if !ok {
		return codedErrorf(ErrNotFound, "room %d does not exist", dst)
	}
	player := p.players[playerID]
	if srcRoom, ok := p.rooms[src]; ok {
		srcRoom.mu.Lock()
		delete(srcRoom.Members, playerID)
		srcRoom.mu.Unlock()
	}
	dstRoom.mu.Lock()
	dstRoom.Members[playerID] = &RoomMember{Player: player}
	dstRoom.mu.Unlock()
	p.location[playerID] = dst
	return nil
}
