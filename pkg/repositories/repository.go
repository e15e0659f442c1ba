package repositories

import (
	"context"
	"time"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
)

// Repository is the durable record of rooms and their memberships.
// Every write bumps the room's updated_at.
type Repository interface {
	Close(ctx context.Context) error
	// FindByID returns the room and its members ordered by join time.
	// It returns ErrNotFound when the room has no record.
	FindByID(ctx context.Context, gameID string) (*models.Room, error)
	UpsertRoom(ctx context.Context, gameID string, ownerID string, status rooms.Status) error
	UpsertPlayer(ctx context.Context, gameID string, member models.Member) error
	UpdatePlayerConnection(ctx context.Context, gameID string, playerID string, isConnected bool) error
	DeletePlayer(ctx context.Context, gameID string, playerID string) error
	// DeleteMemberships removes every membership row of the room and returns how many were removed.
	DeleteMemberships(ctx context.Context, gameID string) (int64, error)
	UpdateOwner(ctx context.Context, gameID string, ownerID string) error
	UpdateStatus(ctx context.Context, gameID string, status rooms.Status) error
	// ListOrphanCandidates returns rooms that still have members but were last updated before the cutoff.
	ListOrphanCandidates(ctx context.Context, updatedBefore time.Time) ([]string, error)
}
