package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"wordchain.dev/srv"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestCreateAndGetPlayer(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p, err := d.CreatePlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	got, err := d.GetPlayer(ctx, p.ID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("name = %q, want alice", got.Name)
	}
}

func TestCreatePlayer_DuplicateNameFails(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if _, err := d.CreatePlayer(ctx, "bob"); err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := d.CreatePlayer(ctx, "bob"); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
}

func TestRoomLifecycleAndReaperQuery(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.CreateRoomRecord(ctx, 2, "arena"); err != nil {
		t.Fatalf("create room record: %v", err)
	}

	missing, err := d.RoomsMissingEnd(ctx)
	if err != nil {
		t.Fatalf("rooms missing end: %v", err)
	}
	if len(missing) != 1 || missing[0] != 2 {
		t.Fatalf("missing = %v, want [2]", missing)
	}

	if err := d.EndRoom(ctx, 2); err != nil {
		t.Fatalf("end room: %v", err)
	}
	missing, err = d.RoomsMissingEnd(ctx)
	if err != nil {
		t.Fatalf("rooms missing end: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no rooms missing end after EndRoom, got %v", missing)
	}
}

func TestCreateGameRecordAndFinishGame(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.CreateRoomRecord(ctx, 3, "den"); err != nil {
		t.Fatalf("create room record: %v", err)
	}
	p1, _ := d.CreatePlayer(ctx, "carl")
	p2, _ := d.CreatePlayer(ctx, "dana")

	gameID, err := d.CreateGameRecord(ctx, 3, srv.DefaultRules(), []uuid.UUID{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("create game record: %v", err)
	}

	turns := []srv.Turn{
		{PlayerID: p1.ID, Word: &srv.Word{Content: "apple", IsCorrect: true}},
		{PlayerID: p2.ID, Word: nil},
	}
	if err := d.FinishGame(ctx, gameID, turns); err != nil {
		t.Fatalf("finish game: %v", err)
	}

	_, _, total, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if total != 1 {
		t.Fatalf("total finished games = %d, want 1", total)
	}
}

func TestInsertMessage(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.CreateRoomRecord(ctx, 1, "lobby"); err != nil {
		t.Fatalf("create room record: %v", err)
	}
	p, _ := d.CreatePlayer(ctx, "eve")

	id, createdOn, err := d.InsertMessage(ctx, 1, p.ID, "hello")
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero message id")
	}
	if createdOn.IsZero() {
		t.Fatal("expected a non-zero timestamp")
	}
}
