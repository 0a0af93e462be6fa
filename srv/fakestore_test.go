package srv

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for Store used by tests that exercise
// the room lifecycle, game loop, and reaper without touching sqlite.
type fakeStore struct {
	mu sync.Mutex

	players map[uuid.UUID]*Player

	roomsEnded   map[int]bool
	roomsMissing map[int]bool

	nextGameID int
	finished   map[int][]Turn

	messages int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:      make(map[uuid.UUID]*Player),
		roomsEnded:   make(map[int]bool),
		roomsMissing: make(map[int]bool),
		finished:     make(map[int][]Turn),
		nextGameID:   1,
	}
}

func (f *fakeStore) CreatePlayer(ctx context.Context, name string) (*Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Name == name {
			return nil, codedErrorf(ErrConflict, "name %q already taken", name)
		}
	}
	p := &Player{ID: uuid.New(), Name: name, CreatedOn: time.Now()}
	f.players[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetPlayer(ctx context.Context, id uuid.UUID) (*Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, codedErrorf(ErrNotFound, "player %s not found", id)
	}
	return p, nil
}

func (f *fakeStore) CreateRoomRecord(ctx context.Context, roomID int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomsMissing[roomID] = true
	return nil
}

func (f *fakeStore) EndRoom(ctx context.Context, roomID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomsEnded[roomID] = true
	delete(f.roomsMissing, roomID)
	return nil
}

func (f *fakeStore) RoomsMissingEnd(ctx context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.roomsMissing))
	for id := range f.roomsMissing {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeStore) CreateGameRecord(ctx context.Context, roomID int, rules DeathmatchRules, playerIDs []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextGameID
	f.nextGameID++
	return id, nil
}

func (f *fakeStore) FinishGame(ctx context.Context, gameID int, turns []Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[gameID] = turns
	return nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, roomID int, playerID uuid.UUID, content string) (int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages++
	return f.messages, time.Now(), nil
}

func (f *fakeStore) Stats(ctx context.Context) (int, float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return 0, 0, len(f.finished), nil
}

var _ Store = (*fakeStore)(nil)

// fakeDict is a deterministic WordChecker: any word is correct unless it
// appears in reject, with no definitions.
type fakeDict struct {
	reject map[string]bool
}

func newFakeDict(reject ...string) *fakeDict {
	d := &fakeDict{reject: make(map[string]bool)}
	for _, w := range reject {
		d.reject[w] = true
	}
	return d
}

func (d *fakeDict) Check(ctx context.Context, word string) (bool, []string, error) {
	return !d.reject[word], nil, nil
}

var _ WordChecker = (*fakeDict)(nil)
