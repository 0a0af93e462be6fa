// Package db implements srv.Store against a local SQLite file via
// modernc.org/sqlite (pure Go, no cgo), grounded on the pool/transaction
// style of obrien-tchaleu-ludo-king-go's pkg/database.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"wordchain.dev/srv"
)

// isUniqueViolation reports whether err comes from a SQLite UNIQUE
// constraint failure. modernc.org/sqlite surfaces these as plain errors
// whose message contains this substring; there is no typed sentinel to
// errors.As against.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_on DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_on DATETIME NOT NULL,
	last_active_on DATETIME NOT NULL,
	ended_on DATETIME
);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status TEXT NOT NULL,
	created_on DATETIME NOT NULL,
	ended_on DATETIME,
	rules TEXT NOT NULL,
	room_id INTEGER NOT NULL REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS players_games (
	player_id TEXT NOT NULL REFERENCES players(id),
	game_id INTEGER NOT NULL REFERENCES games(id),
	PRIMARY KEY (player_id, game_id)
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	word TEXT,
	is_correct BOOLEAN,
	started_on DATETIME NOT NULL,
	ended_on DATETIME,
	game_id INTEGER NOT NULL REFERENCES games(id),
	player_id TEXT NOT NULL REFERENCES players(id),
	UNIQUE (word, game_id),
	CHECK ((word IS NULL) = (is_correct IS NULL))
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	created_on DATETIME NOT NULL,
	room_id INTEGER NOT NULL REFERENCES rooms(id),
	player_id TEXT NOT NULL REFERENCES players(id)
);
`

// DB implements srv.Store on top of a *sql.DB opened against a SQLite file.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and applies the
// schema. Foreign keys are enabled explicitly: SQLite defaults them off
// per-connection.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent handlers

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

var _ srv.Store = (*DB)(nil)

// CreatePlayer inserts a new player with a freshly minted UUID. Fails with
// a conflict-coded error if the name is already taken.
func (d *DB) CreatePlayer(ctx context.Context, name string) (*srv.Player, error) {
	p := &srv.Player{ID: uuid.New(), Name: name, CreatedOn: time.Now()}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO players (id, name, created_on) VALUES (?, ?, ?)`,
		p.ID.String(), p.Name, p.CreatedOn)
	if isUniqueViolation(err) {
		return nil, srv.NewCodedError(srv.ErrConflict, "name %q already taken", name)
	}
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return p, nil
}

// GetPlayer looks up a player by id.
func (d *DB) GetPlayer(ctx context.Context, id uuid.UUID) (*srv.Player, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT id, name, created_on FROM players WHERE id = ?`, id.String())
	var idStr, name string
	var createdOn time.Time
	if err := row.Scan(&idStr, &name, &createdOn); err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("get player: malformed stored id: %w", err)
	}
	return &srv.Player{ID: parsed, Name: name, CreatedOn: createdOn}, nil
}

// CreateRoomRecord persists a new room row under an id already minted by
// the in-memory pool.
func (d *DB) CreateRoomRecord(ctx context.Context, roomID int, name string) error {
	now := time.Now()
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO rooms (id, name, created_on, last_active_on) VALUES (?, ?, ?, ?)`,
		roomID, name, now, now)
	if err != nil {
		return fmt.Errorf("create room record: %w", err)
	}
	return nil
}

// EndRoom stamps a room's ended_on.
func (d *DB) EndRoom(ctx context.Context, roomID int) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE rooms SET ended_on = ? WHERE id = ?`, time.Now(), roomID)
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	return nil
}

// RoomsMissingEnd returns every room id with no ended_on except the
// lobby's (id 1), used by the reaper to reconcile rooms the in-memory
// pool has forgotten.
func (d *DB) RoomsMissingEnd(ctx context.Context) ([]int, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id FROM rooms WHERE ended_on IS NULL AND id != 1`)
	if err != nil {
		return nil, fmt.Errorf("list rooms missing end: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list rooms missing end: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateGameRecord inserts a game row and its player roster in one
// transaction.
func (d *DB) CreateGameRecord(ctx context.Context, roomID int, rules srv.DeathmatchRules, playerIDs []uuid.UUID) (int, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create game record: %w", err)
	}
	defer tx.Rollback()

	rulesJSON, err := marshalRules(rules)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO games (status, created_on, rules, room_id) VALUES (?, ?, ?, ?)`,
		"IN_PROGRESS", time.Now(), rulesJSON, roomID)
	if err != nil {
		return 0, fmt.Errorf("create game record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create game record: %w", err)
	}

	for _, playerID := range playerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players_games (player_id, game_id) VALUES (?, ?)`,
			playerID.String(), id); err != nil {
			return 0, fmt.Errorf("create game record: link player: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create game record: %w", err)
	}
	return int(id), nil
}

// FinishGame marks a game ended and persists its sealed turns in one
// transaction.
func (d *DB) FinishGame(ctx context.Context, gameID int, turns []srv.Turn) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status = ?, ended_on = ? WHERE id = ?`,
		"FINISHED", time.Now(), gameID); err != nil {
		return fmt.Errorf("finish game: %w", err)
	}

	for _, turn := range turns {
		var word *string
		var isCorrect *bool
		if turn.Word != nil {
			word = &turn.Word.Content
			isCorrect = &turn.Word.IsCorrect
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (word, is_correct, started_on, ended_on, game_id, player_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			word, isCorrect, turn.StartedOn, turn.EndedOn, gameID, turn.PlayerID.String()); err != nil {
			return fmt.Errorf("finish game: insert turn: %w", err)
		}
	}

	return tx.Commit()
}

// InsertMessage persists a chat message and returns its id and timestamp.
func (d *DB) InsertMessage(ctx context.Context, roomID int, playerID uuid.UUID, content string) (int, time.Time, error) {
	now := time.Now()
	res, err := d.conn.ExecContext(ctx,
		`INSERT INTO messages (content, created_on, room_id, player_id) VALUES (?, ?, ?, ?)`,
		content, now, roomID, playerID.String())
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert message: %w", err)
	}
	return int(id), now, nil
}

func marshalRules(rules srv.DeathmatchRules) (string, error) {
	b, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("marshal rules: %w", err)
	}
	return string(b), nil
}

// Stats computes the aggregate figures the /stats endpoint serves, cached
// 30s above this layer by srv.Server.
func (d *DB) Stats(ctx context.Context) (longestChain int, longestGameSeconds float64, totalFinishedGames int, err error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT COUNT(*) FROM turns t WHERE t.is_correct = 1
				GROUP BY t.game_id ORDER BY COUNT(*) DESC LIMIT 1), 0),
			COALESCE((SELECT MAX(julianday(ended_on) - julianday(created_on)) * 86400.0
				FROM games WHERE status = 'FINISHED' AND ended_on IS NOT NULL), 0),
			(SELECT COUNT(*) FROM games WHERE status = 'FINISHED')
	`)
	if err := row.Scan(&longestChain, &longestGameSeconds, &totalFinishedGames); err != nil {
		return 0, 0, 0, fmt.Errorf("stats: %w", err)
	}
	return longestChain, longestGameSeconds, totalFinishedGames, nil
}
