package srv

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence adapter contract the game loop, room lifecycle
// service, HTTP surface, and reaper depend on. Implemented by
// internal/db.DB; kept as an interface here so this package never
// imports database/sql or a driver directly.
type Store interface {
	CreatePlayer(ctx context.Context, name string) (*Player, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*Player, error)

	CreateRoomRecord(ctx context.Context, roomID int, name string) error
	EndRoom(ctx context.Context, roomID int) error
	RoomsMissingEnd(ctx context.Context) ([]int, error)

	CreateGameRecord(ctx context.Context, roomID int, rules DeathmatchRules, playerIDs []uuid.UUID) (gameID int, err error)
	FinishGame(ctx context.Context, gameID int, turns []Turn) error

	InsertMessage(ctx context.Context, roomID int, playerID uuid.UUID, content string) (id int, createdOn time.Time, err error)

	Stats(ctx context.Context) (longestChain int, longestGameSeconds float64, totalFinishedGames int, err error)
}
