package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"time"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLiteRepository opens the database at path and applies the embedded migrations.
// Use ":memory:" for a throwaway database.
func NewSQLiteRepository(ctx context.Context, path string, clock clockwork.Clock) (Repository, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// SQLite allows a single writer, and an in-memory database only
	// exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %v", pragma, err)
		}
	}

	if err := applySQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:    db,
		clock: clock,
	}, nil
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB) error {
	dir, err := sqliteMigrations.ReadDir("migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := path.Join("migrations/sqlite", entry.Name())
		migration, err := sqliteMigrations.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) now() int64 {
	return r.clock.Now().UnixMilli()
}

func (r *SQLiteRepository) FindByID(ctx context.Context, gameID string) (*models.Room, error) {
	room := &models.Room{GameID: gameID}
	var status string
	var updatedAt int64
	q := `SELECT owner_id, status, updated_at FROM rooms WHERE game_id = ?;`
	if err := r.db.QueryRowContext(ctx, q, gameID).Scan(&room.OwnerID, &status, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	room.Status = rooms.Status(status)
	room.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	q = `
	SELECT player_id, username, is_ready, team, is_connected, joined_at
	FROM room_players WHERE game_id = ?
	ORDER BY joined_at, player_id;
	`
	rows, err := r.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	room.Players = make([]models.Member, 0)
	for rows.Next() {
		var m models.Member
		var team string
		var joinedAt int64
		if err := rows.Scan(&m.PlayerID, &m.Username, &m.IsReady, &team, &m.IsConnected, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}
		m.Team = rooms.Team(team)
		m.JoinedAt = time.UnixMilli(joinedAt).UTC()
		room.Players = append(room.Players, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read players: %v", err)
	}
	room.BuildTeams()

	return room, nil
}

func (r *SQLiteRepository) UpsertRoom(ctx context.Context, gameID string, ownerID string, status rooms.Status) error {
	now := r.now()
	q := `
	INSERT INTO rooms (game_id, owner_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (game_id) DO UPDATE SET owner_id = excluded.owner_id, status = excluded.status, updated_at = excluded.updated_at;
	`
	if _, err := r.db.ExecContext(ctx, q, gameID, ownerID, string(status), now, now); err != nil {
		return fmt.Errorf("failed to upsert room: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertPlayer(ctx context.Context, gameID string, member models.Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := r.now()
	q := `
	INSERT INTO rooms (game_id, created_at, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (game_id) DO UPDATE SET updated_at = excluded.updated_at;
	`
	if _, err := tx.ExecContext(ctx, q, gameID, now, now); err != nil {
		return fmt.Errorf("failed to touch room: %v", err)
	}

	q = `
	INSERT INTO room_players (game_id, player_id, username, is_ready, team, is_connected, joined_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (game_id, player_id) DO UPDATE SET
		username = excluded.username,
		is_ready = excluded.is_ready,
		team = excluded.team,
		is_connected = excluded.is_connected;
	`
	_, err = tx.ExecContext(ctx, q, gameID, member.PlayerID, member.Username, member.IsReady,
		string(member.Team), member.IsConnected, member.JoinedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// execAndTouch runs q and bumps the room's updated_at in one transaction.
func (r *SQLiteRepository) execAndTouch(ctx context.Context, gameID string, q string, args ...interface{}) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET updated_at = ? WHERE game_id = ?;`, r.now(), gameID); err != nil {
		return 0, fmt.Errorf("failed to touch room: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %v", err)
	}
	return affected, nil
}

func (r *SQLiteRepository) UpdatePlayerConnection(ctx context.Context, gameID string, playerID string, isConnected bool) error {
	q := `UPDATE room_players SET is_connected = ? WHERE game_id = ? AND player_id = ?;`
	if _, err := r.execAndTouch(ctx, gameID, q, isConnected, gameID, playerID); err != nil {
		return fmt.Errorf("failed to update player connection: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) DeletePlayer(ctx context.Context, gameID string, playerID string) error {
	q := `DELETE FROM room_players WHERE game_id = ? AND player_id = ?;`
	if _, err := r.execAndTouch(ctx, gameID, q, gameID, playerID); err != nil {
		return fmt.Errorf("failed to delete player: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteMemberships(ctx context.Context, gameID string) (int64, error) {
	q := `DELETE FROM room_players WHERE game_id = ?;`
	n, err := r.execAndTouch(ctx, gameID, q, gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memberships: %v", err)
	}
	return n, nil
}

func (r *SQLiteRepository) UpdateOwner(ctx context.Context, gameID string, ownerID string) error {
	q := `UPDATE rooms SET owner_id = ?, updated_at = ? WHERE game_id = ?;`
	if _, err := r.db.ExecContext(ctx, q, ownerID, r.now(), gameID); err != nil {
		return fmt.Errorf("failed to update owner: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, gameID string, status rooms.Status) error {
	q := `UPDATE rooms SET status = ?, updated_at = ? WHERE game_id = ?;`
	if _, err := r.db.ExecContext(ctx, q, string(status), r.now(), gameID); err != nil {
		return fmt.Errorf("failed to update status: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) ListOrphanCandidates(ctx context.Context, updatedBefore time.Time) ([]string, error) {
	q := `
	SELECT DISTINCT r.game_id FROM rooms r
	JOIN room_players p ON p.game_id = r.game_id
	WHERE r.updated_at < ?
	ORDER BY r.game_id;
	`
	rows, err := r.db.QueryContext(ctx, q, updatedBefore.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan candidates: %v", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan room id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
