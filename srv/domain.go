package srv

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle state of a Room.
type RoomStatus string

const (
	RoomOpen       RoomStatus = "Open"
	RoomClosed     RoomStatus = "Closed"
	RoomInProgress RoomStatus = "InProgress"
	RoomExpired    RoomStatus = "Expired"
)

// GameStateEnum is the lifecycle state of a Deathmatch.
type GameStateEnum string

const (
	GameCreating    GameStateEnum = "CREATING"
	GameStarted     GameStateEnum = "STARTED"
	GameWaiting     GameStateEnum = "WAITING"
	GameStartedTurn GameStateEnum = "STARTED_TURN"
	GameEndedTurn   GameStateEnum = "ENDED_TURN"
	GameEnded       GameStateEnum = "ENDED"
)

// Player is a connected user, identified by a stable UUID carried in an
// auth cookie across reconnects. Name is globally unique and at most 10
// characters.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedOn time.Time `json:"created_on"`
}

const maxPlayerNameLen = 10

// DeathmatchRules are the player-configurable parameters of a room's game,
// validated on both create and modify. Bounds per spec: round_time
// [3,30]s, start_score [0,10], penalty [-10,0], reward [0,10].
type DeathmatchRules struct {
	Type       string `json:"type"`
	RoundTime  int    `json:"round_time"`
	StartScore int    `json:"start_score"`
	Penalty    int    `json:"penalty"`
	Reward     int    `json:"reward"`
}

// DefaultRules returns the rules a freshly created room starts with.
func DefaultRules() DeathmatchRules {
	return DeathmatchRules{Type: "deathmatch", RoundTime: 10, StartScore: 5, Penalty: -2, Reward: 1}
}

// Validate reports whether the rules are within the bounds this server
// will accept.
func (r DeathmatchRules) Validate() error {
	switch {
	case r.Type != "deathmatch":
		return codedErrorf(ErrValidation, "type must be deathmatch")
	case r.RoundTime < 3 || r.RoundTime > 30:
		return codedErrorf(ErrValidation, "round_time must be between 3 and 30")
	case r.StartScore < 0 || r.StartScore > 10:
		return codedErrorf(ErrValidation, "start_score must be between 0 and 10")
	case r.Penalty < -10 || r.Penalty > 0:
		return codedErrorf(ErrValidation, "penalty must be between -10 and 0")
	case r.Reward < 0 || r.Reward > 10:
		return codedErrorf(ErrValidation, "reward must be between 0 and 10")
	}
	return nil
}

// Room is a lobby that owns at most one in-progress Deathmatch at a time.
// Capacity is ignored for the Lobby. A Room is handed out by
// PlayerRoomPool as a shared pointer and mutated from whichever request
// or reaper goroutine is currently acting on it, so Status, Rules,
// Capacity, GameID, LastActiveOn, EndedOn, and Members (including each
// member's Ready/InGame flags) are guarded by mu; ID, Name, OwnerID,
// OwnerName, and CreatedOn are set once at construction and never
// mutated again, so they're safe to read without it. Hold mu only
// across the read-modify-write itself — never across a call into the
// pool, ConnectionManager, or Store: the pool (and the ConnectionManager
// through it) locks a Room's mu itself, and sync.Mutex is not reentrant.
type Room struct {
	mu           sync.Mutex
	ID           int                       `json:"id"`
	Name         string                    `json:"name"`
	Capacity     int                       `json:"capacity"`
	Status       RoomStatus                `json:"status"`
	Rules        DeathmatchRules           `json:"rules"`
	OwnerID      uuid.UUID                 `json:"owner_id"`
	OwnerName    string                    `json:"owner_name"`
	Members      map[uuid.UUID]*RoomMember `json:"-"`
	GameID       int                       `json:"game_id,omitempty"`
	CreatedOn    time.Time                 `json:"created_on"`
	LastActiveOn time.Time                 `json:"last_active_on"`
	EndedOn      *time.Time                `json:"ended_on,omitempty"`
}

// RoomMember is a player's per-room connection state: readiness before a
// game starts, and whether they are presently seated in an active game.
type RoomMember struct {
	Player  *Player
	Ready   bool
	InGame  bool
}

// IsLobby reports whether this room is the well-known pre-seeded lobby.
func (r *Room) IsLobby() bool { return r.ID == LobbyID }

// GamePlayer is one participant's state within a single Deathmatch.
type GamePlayer struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Mistakes int       `json:"mistakes"`
	InGame   bool      `json:"in_game"`
	Place    int       `json:"place,omitempty"`
}

// Word is a single lowercased word submission, correct or not.
type Word struct {
	Content    string   `json:"content"`
	IsCorrect  bool     `json:"is_correct"`
	Definitions []string `json:"definitions,omitempty"`
}

// Turn is one scheduled opportunity for the current player to submit a
// word, bounded by round_time.
type Turn struct {
	PlayerID  uuid.UUID  `json:"player_id"`
	StartedOn time.Time  `json:"started_on"`
	EndedOn   *time.Time `json:"ended_on,omitempty"`
	Word      *Word      `json:"word,omitempty"`
	Info      string     `json:"info,omitempty"`
}

// GameEventKind discriminates the events a Deathmatch emits after each
// processed turn; the game loop translates a batch of these into system
// chat broadcasts.
type GameEventKind string

const (
	EventPlayerLost   GameEventKind = "player_lost"
	EventPlayerWon    GameEventKind = "player_won"
	EventGameFinished GameEventKind = "game_finished"
)

// GameEvent is one notable occurrence produced while evaluating a turn or
// ending a game.
type GameEvent struct {
	Kind        GameEventKind
	PlayerName  string
	ChainLength int
}
