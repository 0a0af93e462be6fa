package srv

import (
	"testing"

	"github.com/google/uuid"
)

func newTestPlayer(name string) *Player {
	return &Player{ID: uuid.New(), Name: name}
}

func TestPlayerRoomPool_AddAndGetPlayer(t *testing.T) {
	p := NewPlayerRoomPool()
	alice := newTestPlayer("alice")

	if err := p.AddPlayer(alice, LobbyID); err != nil {
		t.Fatalf("add player: %v", err)
	}
	got, err := p.GetPlayer(alice.ID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("name = %q, want alice", got.Name)
	}
}

func TestPlayerRoomPool_AddPlayer_DuplicateFails(t *testing.T) {
	p := NewPlayerRoomPool()
	alice := newTestPlayer("alice")
	if err := p.AddPlayer(alice, LobbyID); err != nil {
		t.Fatalf("add player: %v", err)
	}
	if err := p.AddPlayer(alice, LobbyID); kindOf(err) != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPlayerRoomPool_CreateRoom_DuplicateNameFails(t *testing.T) {
	p := NewPlayerRoomPool()
	room := &Room{Name: "arena", Capacity: 4, Rules: DefaultRules()}
	if err := p.CreateRoom(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	dup := &Room{Name: "arena", Capacity: 4, Rules: DefaultRules()}
	if err := p.CreateRoom(dup); kindOf(err) != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPlayerRoomPool_RemoveRoom_RefusesLobby(t *testing.T) {
	p := NewPlayerRoomPool()
	if err := p.RemoveRoom(LobbyID); kindOf(err) != ErrConflict {
		t.Fatalf("expected ErrConflict removing the lobby, got %v", err)
	}
}

func TestPlayerRoomPool_RemoveRoom_RefusesNonEmpty(t *testing.T) {
	p := NewPlayerRoomPool()
	room := &Room{Name: "arena", Capacity: 4, Rules: DefaultRules()}
	if err := p.CreateRoom(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	alice := newTestPlayer("alice")
	if err := p.AddPlayer(alice, room.ID); err != nil {
		t.Fatalf("add player: %v", err)
	}
	if err := p.RemoveRoom(room.ID); kindOf(err) != ErrConflict {
		t.Fatalf("expected ErrConflict removing a non-empty room, got %v", err)
	}
}

func TestPlayerRoomPool_MovePlayer(t *testing.T) {
	p := NewPlayerRoomPool()
	room := &Room{Name: "arena", Capacity: 4, Rules: DefaultRules()}
	if err := p.CreateRoom(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	alice := newTestPlayer("alice")
	if err := p.AddPlayer(alice, LobbyID); err != nil {
		t.Fatalf("add player: %v", err)
	}
	if err := p.MovePlayer(alice.ID, LobbyID, room.ID); err != nil {
		t.Fatalf("move player: %v", err)
	}

	if err := p.MovePlayer(alice.ID, room.ID+999, room.ID); kindOf(err) != ErrNotInRoom {
		t.Fatalf("expected ErrNotInRoom for a stale source room, got %v", err)
	}

	inRoom, err := p.GetRoomPlayers(room.ID)
	if err != nil || len(inRoom) != 1 {
		t.Fatalf("expected alice in room, got %v, err %v", inRoom, err)
	}
	inLobby, err := p.GetRoomPlayers(LobbyID)
	if err != nil || len(inLobby) != 0 {
		t.Fatalf("expected lobby empty after move, got %v, err %v", inLobby, err)
	}
}

func TestPlayerRoomPool_ActiveRooms(t *testing.T) {
	p := NewPlayerRoomPool()
	if p.ActiveRooms() != 0 {
		t.Fatalf("expected 0 active rooms, got %d", p.ActiveRooms())
	}
	room := &Room{Name: "arena", Capacity: 4, Rules: DefaultRules()}
	if err := p.CreateRoom(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if p.ActiveRooms() != 1 {
		t.Fatalf("expected 1 active room, got %d", p.ActiveRooms())
	}
}
