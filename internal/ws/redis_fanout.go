package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roomrelay/internal/services/broadcast"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const deliveryChannelPrefix = "rr:c:"

func deliveryChannel(connID string) string { return deliveryChannelPrefix + connID }

// Bus carries frames to connections held by other instances. Every local
// connection is subscribed to its own channel on one shared PubSub, so a
// PUBLISH that reaches no subscriber means the peer is gone everywhere.
type Bus struct {
	rdb *redis.Client
	ps  *redis.PubSub
	hub *Hub
}

func NewBus(ctx context.Context, rdb *redis.Client, hub *Hub) *Bus {
	return &Bus{
		rdb: rdb,
		ps:  rdb.Subscribe(ctx),
		hub: hub,
	}
}

// Run fans frames from Redis out to the local Hub until ctx is done.
func (b *Bus) Run(ctx context.Context) {
	ch := b.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok { // PubSub closed.
				return
			}
			// channel format: "rr:c:<connID>"
			connID, found := strings.CutPrefix(m.Channel, deliveryChannelPrefix)
			if !found {
				continue
			}
			if err := b.hub.deliverLocal(connID, []byte(m.Payload)); err != nil {
				zap.L().Debug("ws.bus_deliver", zap.String("conn", connID), zap.Error(err))
			}
		}
	}
}

func (b *Bus) Subscribe(ctx context.Context, connID string) error {
	return b.ps.Subscribe(ctx, deliveryChannel(connID))
}

func (b *Bus) Unsubscribe(ctx context.Context, connID string) error {
	return b.ps.Unsubscribe(ctx, deliveryChannel(connID))
}

func (b *Bus) Publish(ctx context.Context, connID string, payload []byte) error {
	n, err := b.rdb.Publish(ctx, deliveryChannel(connID), payload).Result()
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if n == 0 {
		return broadcast.ErrPeerGone
	}
	return nil
}

func (b *Bus) Close() error {
	err := b.ps.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
