package memberwatcher

import (
	"context"
	"strings"

	"roomrelay/internal/registry"
	"roomrelay/internal/services/membership"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run listens to key‑expiry events and removes memberships whose lease ran
// out (crashed instance, lost disconnect). Run must be started once at
// service boot; every instance may run it since removal is idempotent.
func Run(ctx context.Context, rdb *redis.Client, svc membership.IMembershipService) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		zap.L().Warn("memberwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			handleExpired(ctx, svc, m.Payload)
		}
	}
}

func handleExpired(ctx context.Context, svc membership.IMembershipService, key string) bool {
	connID, ok := strings.CutPrefix(key, registry.LeaseKeyPrefix)
	if !ok || connID == "" {
		return false
	}
	if err := svc.Expire(ctx, connID); err != nil {
		zap.L().Warn("memberwatcher.expire", zap.String("conn", connID), zap.Error(err))
		return false
	}
	zap.L().Info("memberwatcher.expired", zap.String("conn", connID))
	return true
}
