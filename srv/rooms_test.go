package srv

import (
	"context"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{
		CookieName:   "player_id",
		CookieExpiry: 0,
		Delays:       LoopDelays{},
	}, newFakeStore(), newFakeDict())
	t.Cleanup(s.Shutdown) // cancels any game loop spawned by StartGame in this test
	return s
}

// connectTestPlayer registers and connects a fresh player into the lobby,
// mirroring what HandleWS does on a real connection.
func connectTestPlayer(t *testing.T, s *Server, name string) *Player {
	t.Helper()
	p := newTestPlayer(name)
	if _, err := s.conns.Connect(p, LobbyID); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	return p
}

func TestCreateRoom_OwnerJoinsAndLobbyShrinks(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")

	room, err := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.OwnerID != owner.ID {
		t.Fatal("expected owner to be set")
	}
	got, err := s.pool.GetRoomOfPlayer(owner.ID)
	if err != nil || got.ID != room.ID {
		t.Fatalf("expected owner to be moved into the new room, got %v, err %v", got, err)
	}
	lobbyPlayers, _ := s.pool.GetRoomPlayers(LobbyID)
	if len(lobbyPlayers) != 0 {
		t.Fatalf("expected the lobby to be empty after room creation, got %d", len(lobbyPlayers))
	}
}

func TestCreateRoom_DuplicateNameRejected(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	if _, err := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules()); err != nil {
		t.Fatalf("create room: %v", err)
	}

	other := connectTestPlayer(t, s, "other")
	if _, err := s.CreateRoom(context.Background(), other, "arena", 4, DefaultRules()); kindOf(err) != ErrConflict {
		t.Fatalf("expected ErrConflict for a duplicate room name, got %v", err)
	}
}

func TestJoinRoom_RejectsFullRoom(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, err := s.CreateRoom(context.Background(), owner, "arena", 1, DefaultRules())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	joiner := connectTestPlayer(t, s, "joiner")
	if err := s.JoinRoom(room, joiner); kindOf(err) != ErrBadState {
		t.Fatalf("expected ErrBadState joining a full room, got %v", err)
	}
}

func TestJoinRoom_RejectsClosedRoom(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, err := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := s.ToggleRoomStatus(room, owner.ID); err != nil {
		t.Fatalf("toggle status: %v", err)
	}

	joiner := connectTestPlayer(t, s, "joiner")
	if err := s.JoinRoom(room, joiner); kindOf(err) != ErrBadState {
		t.Fatalf("expected ErrBadState joining a closed room, got %v", err)
	}
}

func TestLeaveRoom_OwnerLeavingClosedRoomReopensIt(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())
	if err := s.ToggleRoomStatus(room, owner.ID); err != nil {
		t.Fatalf("toggle status: %v", err)
	}
	if room.Status != RoomClosed {
		t.Fatalf("expected room to be closed, got %s", room.Status)
	}

	if err := s.LeaveRoom(room, owner); err != nil {
		t.Fatalf("leave room: %v", err)
	}
	if room.Status != RoomOpen {
		t.Fatalf("expected the room to reopen once its owner leaves while closed, got %s", room.Status)
	}
	if room.OwnerID != owner.ID {
		t.Fatal("expected ownership to be retained even after the owner leaves (no re-election)")
	}
}

func TestToggleRoomStatus_NonOwnerRejected(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())

	other := connectTestPlayer(t, s, "other")
	if err := s.ToggleRoomStatus(room, other.ID); kindOf(err) != ErrBadState {
		t.Fatalf("expected ErrBadState for a non-owner status toggle, got %v", err)
	}
}

func TestKick_MovesTargetToLobbyAndShrinksRoom(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())

	target := connectTestPlayer(t, s, "target")
	if err := s.JoinRoom(room, target); err != nil {
		t.Fatalf("join room: %v", err)
	}
	if len(room.Members) != 2 {
		t.Fatalf("expected 2 members before kick, got %d", len(room.Members))
	}

	if err := s.Kick(room, owner.ID, target.ID, target.Name); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(room.Members) != 1 {
		t.Fatalf("expected 1 member after kick, got %d", len(room.Members))
	}
	got, err := s.pool.GetRoomOfPlayer(target.ID)
	if err != nil || got.ID != LobbyID {
		t.Fatalf("expected the kicked player back in the lobby, got %v, err %v", got, err)
	}
}

func TestKick_NonOwnerRejected(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())
	target := connectTestPlayer(t, s, "target")
	if err := s.JoinRoom(room, target); err != nil {
		t.Fatalf("join room: %v", err)
	}

	if err := s.Kick(room, target.ID, owner.ID, owner.Name); kindOf(err) != ErrBadState {
		t.Fatalf("expected ErrBadState when a non-owner tries to kick, got %v", err)
	}
}

func TestStartGame_RequiresAllReady(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 4, DefaultRules())
	other := connectTestPlayer(t, s, "other")
	if err := s.JoinRoom(room, other); err != nil {
		t.Fatalf("join room: %v", err)
	}

	if err := s.StartGame(context.Background(), room, owner.ID); kindOf(err) != ErrBadState {
		t.Fatalf("expected ErrBadState starting with unready members, got %v", err)
	}

	if err := s.ToggleReady(room, owner.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleReady(room, other.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.StartGame(context.Background(), room, owner.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if room.Status != RoomInProgress {
		t.Fatalf("expected room status InProgress, got %s", room.Status)
	}
	if g := s.games.Get(room.GameID); g == nil {
		t.Fatal("expected a Deathmatch to be registered under the room's game id")
	}
}

func TestStartGame_SoloRoomAllowed(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "solo-arena", 1, DefaultRules())

	if err := s.ToggleReady(room, owner.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.StartGame(context.Background(), room, owner.ID); err != nil {
		t.Fatalf("expected a capacity=1 room to be startable solo, got %v", err)
	}
}

func TestReopenRoomAfterGame(t *testing.T) {
	s := newTestServer(t)
	owner := connectTestPlayer(t, s, "owner")
	room, _ := s.CreateRoom(context.Background(), owner, "arena", 1, DefaultRules())
	if err := s.ToggleReady(room, owner.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.StartGame(context.Background(), room, owner.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}

	s.reopenRoomAfterGame(room)
	if room.Status != RoomOpen {
		t.Fatalf("expected the room to reopen, got %s", room.Status)
	}
	if room.GameID != 0 {
		t.Fatal("expected the game id to be cleared on reopen")
	}
}
