package srv

import (
	"context"

	"github.com/google/uuid"
)

// wordSubmission is one player's attempt at the buffer's current turn.
type wordSubmission struct {
	playerID uuid.UUID
	word     string
}

// WordInputBuffer is a single-slot rendezvous between the WebSocket read
// goroutines (producers, one per connected player) and the room's game
// loop goroutine (the sole consumer). Put never blocks: a submission for
// a turn that already has an unconsumed one replaces it (last writer
// wins). Get blocks until a submission arrives or ctx is done.
type WordInputBuffer struct {
	slot chan wordSubmission
}

// NewWordInputBuffer returns an empty buffer.
func NewWordInputBuffer() *WordInputBuffer {
	return &WordInputBuffer{slot: make(chan wordSubmission, 1)}
}

// Put offers a submission for the current turn, overwriting any
// un-consumed prior submission (last-writer-wins). Never blocks. Returns
// false only if it had to evict a stale, not-yet-consumed submission to
// make room.
func (b *WordInputBuffer) Put(playerID uuid.UUID, word string) bool {
	overwrote := false
	select {
	case <-b.slot:
		overwrote = true
	default:
	}
	b.slot <- wordSubmission{playerID: playerID, word: word}
	return !overwrote
}

// Get blocks until a submission is available or ctx is done, returning
// ok=false in the latter case.
func (b *WordInputBuffer) Get(ctx context.Context) (playerID uuid.UUID, word string, ok bool) {
	select {
	case sub := <-b.slot:
		return sub.playerID, sub.word, true
	case <-ctx.Done():
		return uuid.Nil, "", false
	}
}

// Drain empties a stale submission left over from the previous turn
// without blocking, so a new turn starts with an empty slot.
func (b *WordInputBuffer) Drain() {
	select {
	case <-b.slot:
	default:
	}
}
