package syncdb

import (
	"context"
	"database/sql"
	"time"

	"roomrelay/internal/registry"

	"go.uber.org/zap"
)

// Run mirrors room occupancy into Postgres every interval.
func Run(ctx context.Context, store registry.Store, db *sql.DB, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, store, db, time.Now().UTC()); err != nil {
					zap.L().Warn("syncdb.sync", zap.Error(err))
				}
			}
		}
	}()
}

const (
	upsertOccupancy = `
	INSERT INTO room_occupancy (room_id, mode, members, updated_at)
	     VALUES ($1, $2, $3, $4)
	ON CONFLICT (room_id, mode) DO UPDATE
	       SET members = EXCLUDED.members,
	           updated_at = EXCLUDED.updated_at`

	// rows not touched by this pass belong to rooms that emptied
	deleteStale = `DELETE FROM room_occupancy WHERE updated_at < $1`
)

func syncOnce(ctx context.Context, store registry.Store, db *sql.DB, now time.Time) error {
	// 1. one snapshot of every non-empty (room, mode)
	rooms, err := store.Rooms(ctx)
	if err != nil {
		return err
	}

	// 2. bulk-upsert and drop the rest in one transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rooms {
		if _, err := tx.ExecContext(ctx, upsertOccupancy, r.RoomID, r.Mode, r.Members, now); err != nil {
			zap.L().Error("syncdb.upsert", zap.String("room", r.RoomID), zap.Int("mode", r.Mode), zap.Error(err))
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, deleteStale, now); err != nil {
		return err
	}
	return tx.Commit()
}
