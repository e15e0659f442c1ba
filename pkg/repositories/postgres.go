package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

type PostgresRepository struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// NewPostgresRepository connects to the database at connStr.
// Reconciliation fans out across rooms, so a pool is used rather than a single connection.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, clock clockwork.Clock) (Repository, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return &PostgresRepository{
		pool:  pool,
		clock: clock,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) now() int64 {
	return r.clock.Now().UnixMilli()
}

func (r *PostgresRepository) FindByID(ctx context.Context, gameID string) (*models.Room, error) {
	room := &models.Room{GameID: gameID}
	var status string
	var updatedAt int64
	q := `SELECT owner_id, status, updated_at FROM rooms WHERE game_id = $1;`
	if err := r.pool.QueryRow(ctx, q, gameID).Scan(&room.OwnerID, &status, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	room.Status = rooms.Status(status)
	room.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	q = `
	SELECT player_id, username, is_ready, team, is_connected, joined_at
	FROM room_players WHERE game_id = $1
	ORDER BY joined_at, player_id;
	`
	rows, err := r.pool.Query(ctx, q, gameID)
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

func (r *PostgresRepository) UpsertRoom(ctx context.Context, gameID string, ownerID string, status rooms.Status) error {
	now := r.now()
	q := `
	INSERT INTO rooms (game_id, owner_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (game_id) DO UPDATE SET owner_id = $2, status = $3, updated_at = $4;
	`
	if _, err := r.pool.Exec(ctx, q, gameID, ownerID, string(status), now); err != nil {
		return fmt.Errorf("failed to upsert room: %v", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertPlayer(ctx context.Context, gameID string, member models.Member) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	now := r.now()
	q := `
	INSERT INTO rooms (game_id, created_at, updated_at) VALUES ($1, $2, $2)
	ON CONFLICT (game_id) DO UPDATE SET updated_at = $2;
	`
	if _, err := tx.Exec(ctx, q, gameID, now); err != nil {
		return fmt.Errorf("failed to touch room: %v", err)
	}

	q = `
	INSERT INTO room_players (game_id, player_id, username, is_ready, team, is_connected, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (game_id, player_id) DO UPDATE SET username = $3, is_ready = $4, team = $5, is_connected = $6;
	`
	_, err = tx.Exec(ctx, q, gameID, member.PlayerID, member.Username, member.IsReady,
		string(member.Team), member.IsConnected, member.JoinedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// execAndTouch runs q and bumps the room's updated_at in one transaction.
func (r *PostgresRepository) execAndTouch(ctx context.Context, gameID string, q string, args ...interface{}) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `UPDATE rooms SET updated_at = $1 WHERE game_id = $2;`, r.now(), gameID); err != nil {
		return 0, fmt.Errorf("failed to touch room: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %v", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) UpdatePlayerConnection(ctx context.Context, gameID string, playerID string, isConnected bool) error {
	q := `UPDATE room_players SET is_connected = $1 WHERE game_id = $2 AND player_id = $3;`
	if _, err := r.execAndTouch(ctx, gameID, q, isConnected, gameID, playerID); err != nil {
		return fmt.Errorf("failed to update player connection: %v", err)
	}
	return nil
}

func (r *PostgresRepository) DeletePlayer(ctx context.Context, gameID string, playerID string) error {
	q := `DELETE FROM room_players WHERE game_id = $1 AND player_id = $2;`
	if _, err := r.execAndTouch(ctx, gameID, q, gameID, playerID); err != nil {
		return fmt.Errorf("failed to delete player: %v", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteMemberships(ctx context.Context, gameID string) (int64, error) {
	q := `DELETE FROM room_players WHERE game_id = $1;`
	n, err := r.execAndTouch(ctx, gameID, q, gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memberships: %v", err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateOwner(ctx context.Context, gameID string, ownerID string) error {
	q := `UPDATE rooms SET owner_id = $1, updated_at = $2 WHERE game_id = $3;`
	if _, err := r.pool.Exec(ctx, q, ownerID, r.now(), gameID); err != nil {
		return fmt.Errorf("failed to update owner: %v", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, gameID string, status rooms.Status) error {
	q := `UPDATE rooms SET status = $1, updated_at = $2 WHERE game_id = $3;`
	if _, err := r.pool.Exec(ctx, q, string(status), r.now(), gameID); err != nil {
		return fmt.Errorf("failed to update status: %v", err)
	}
	return nil
}

func (r *PostgresRepository) ListOrphanCandidates(ctx context.Context, updatedBefore time.Time) ([]string, error) {
	q := `
	SELECT DISTINCT r.game_id FROM rooms r
	JOIN room_players p ON p.game_id = r.game_id
	WHERE r.updated_at < $1
	ORDER BY r.game_id;
	`
	rows, err := r.pool.Query(ctx, q, updatedBefore.UnixMilli())
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
