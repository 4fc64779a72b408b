package syncevents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"roomrelay/internal/registry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run tails the membership event stream and persists every join/leave.
// Replays from the start of the stream are harmless: inserts are keyed on
// the stream id.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{registry.EventStream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncevents.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Error("syncevents.persist", zap.Error(err))
				time.Sleep(time.Second)
				continue // retry the same batch
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

const insertEvent = `INSERT INTO membership_events (stream_id, connection_id, room_id, mode, kind, at)
	             VALUES ($1, $2, $3, $4, $5, to_timestamp($6))
	             ON CONFLICT (stream_id) DO NOTHING`

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		ev, err := decode(m)
		if err != nil {
			zap.L().Warn("syncevents.decode", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx, insertEvent,
			m.ID, ev.connID, ev.roomID, ev.mode, ev.kind, ev.at); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type event struct {
	connID, roomID, kind string
	mode                 int
	at                   int64
}

func decode(m redis.XMessage) (event, error) {
	str := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}
	ev := event{connID: str("cid"), roomID: str("room"), kind: str("kind")}
	if ev.connID == "" || ev.roomID == "" || ev.kind == "" {
		return event{}, fmt.Errorf("missing fields in %v", m.Values)
	}
	var err error
	if ev.mode, err = strconv.Atoi(str("mode")); err != nil {
		return event{}, fmt.Errorf("mode: %w", err)
	}
	if ev.at, err = strconv.ParseInt(str("at"), 10, 64); err != nil {
		return event{}, fmt.Errorf("at: %w", err)
	}
	return ev, nil
}
