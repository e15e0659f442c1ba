package repositories

import (
	"context"
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
)

type ChangeOp int

const (
	ChangeUpsertRoom ChangeOp = iota
	ChangeUpsertPlayer
	ChangeDeletePlayer
	ChangeUpdateConnection
	ChangeUpdateOwner
	ChangeUpdateStatus
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeUpsertRoom:
		return "upsert_room"
	case ChangeUpsertPlayer:
		return "upsert_player"
	case ChangeDeletePlayer:
		return "delete_player"
	case ChangeUpdateConnection:
		return "update_connection"
	case ChangeUpdateOwner:
		return "update_owner"
	case ChangeUpdateStatus:
		return "update_status"
	default:
		return "unknown"
	}
}

// Change is a single write to be applied to the repository asynchronously.
type Change struct {
	Op          ChangeOp
	GameID      string
	OwnerID     string
	Status      rooms.Status
	Member      models.Member
	PlayerID    string
	IsConnected bool
}

func (c Change) Apply(ctx context.Context, repo Repository) error {
	var err error
	switch c.Op {
	case ChangeUpsertRoom:
		err = repo.UpsertRoom(ctx, c.GameID, c.OwnerID, c.Status)
	case ChangeUpsertPlayer:
		err = repo.UpsertPlayer(ctx, c.GameID, c.Member)
	case ChangeDeletePlayer:
		err = repo.DeletePlayer(ctx, c.GameID, c.PlayerID)
	case ChangeUpdateConnection:
		err = repo.UpdatePlayerConnection(ctx, c.GameID, c.PlayerID, c.IsConnected)
	case ChangeUpdateOwner:
		err = repo.UpdateOwner(ctx, c.GameID, c.OwnerID)
	case ChangeUpdateStatus:
		err = repo.UpdateStatus(ctx, c.GameID, c.Status)
	default:
		return fmt.Errorf("unknown change op %d", c.Op)
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s for %s: %w", c.Op, c.GameID, err)
	}
	return nil
}
