package srv

import (
	"encoding/json"
	"time"
)

// envelope wraps every outbound and inbound payload; `type` inside Payload
// is the discriminator clients switch on.
type envelope struct {
	Payload any `json:"payload"`
}

func encode(payload any) []byte {
	b, err := json.Marshal(envelope{Payload: payload})
	if err != nil {
		// payload types are all plain structs produced by this package;
		// a marshal failure here is a programming error, not a runtime
		// condition callers can recover from.
		panic(err)
	}
	return b
}

// ChatMessage is both the inbound (content, playerName, roomId) and
// outbound (adds id, createdOn) shape of a chat payload.
type ChatMessage struct {
	Type       string     `json:"type"`
	ID         int        `json:"id,omitempty"`
	CreatedOn  *time.Time `json:"createdOn,omitempty"`
	Content    string     `json:"content"`
	PlayerName string     `json:"playerName"`
	RoomID     int        `json:"roomId"`
}

// LobbyPlayerOut is the lobby-state representation of one player.
type LobbyPlayerOut struct {
	Name string `json:"name"`
}

// RoomOut is the lobby-state representation of one room.
type RoomOut struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Capacity  int             `json:"capacity"`
	Status    RoomStatus      `json:"status"`
	OwnerName string          `json:"ownerName"`
	Rules     DeathmatchRules `json:"rules"`
}

// LobbyStats is the live counters carried on a lobby_state broadcast.
type LobbyStats struct {
	ActivePlayers int `json:"activePlayers"`
	ActiveRooms   int `json:"activeRooms"`
}

// LobbyStateMsg is a partial delta: a key mapped to nil means removal, a
// key absent entirely means no change.
type LobbyStateMsg struct {
	Type    string                     `json:"type"`
	Rooms   map[string]*RoomOut        `json:"rooms,omitempty"`
	Players map[string]*LobbyPlayerOut `json:"players,omitempty"`
	Stats   *LobbyStats                `json:"stats,omitempty"`
}

// RoomPlayerOut is the room-state representation of one member.
type RoomPlayerOut struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	InGame bool   `json:"inGame"`
}

// RoomStateMsg is a full room snapshot plus an optional player delta map
// (same null-means-removal contract as lobby_state).
type RoomStateMsg struct {
	Type      string                    `json:"type"`
	ID        int                       `json:"id"`
	Name      string                    `json:"name"`
	Capacity  int                       `json:"capacity"`
	Status    RoomStatus                `json:"status"`
	Rules     DeathmatchRules           `json:"rules"`
	OwnerName string                    `json:"ownerName"`
	Players   map[string]*RoomPlayerOut `json:"players,omitempty"`
}

// GamePlayerOut is the wire shape of a GamePlayer.
type GamePlayerOut struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Mistakes int    `json:"mistakes"`
	InGame   bool   `json:"inGame"`
	Place    int    `json:"place,omitempty"`
}

// TurnOut is the wire shape of a Turn, tagged with the acting player's
// index within the circular order.
type TurnOut struct {
	PlayerIdx int        `json:"playerIdx"`
	PlayerID  string     `json:"playerId"`
	StartedOn time.Time  `json:"startedOn"`
	EndedOn   *time.Time `json:"endedOn,omitempty"`
	Word      *Word      `json:"word,omitempty"`
	Info      string     `json:"info,omitempty"`
}

// GameStateMsg carries one of STARTED/WAITING/STARTED_TURN/ENDED_TURN/ENDED,
// each populating only the fields relevant to that phase.
type GameStateMsg struct {
	Type        string          `json:"type"`
	State       GameStateEnum   `json:"state"`
	GameID      int             `json:"gameId,omitempty"`
	Rules       *DeathmatchRules `json:"rules,omitempty"`
	Players     []GamePlayerOut `json:"players,omitempty"`
	CurrentTurn *TurnOut        `json:"currentTurn,omitempty"`
}

// ConnectionStateMsg notifies a single connection of a transport-level
// event; code 4001 denotes "another client already connected".
type ConnectionStateMsg struct {
	Type   string `json:"type"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// GameInputMsg is the only client→server game payload.
type GameInputMsg struct {
	Type      string `json:"type"`
	InputType string `json:"inputType"`
	GameID    int    `json:"gameId"`
	Word      string `json:"word"`
}

// ActionMsg is a one-shot server→client directive.
type ActionMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

const actionKickPlayer = "KICK_PLAYER"
