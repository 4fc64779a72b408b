package registry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roomrelay/internal/redis/redis_functions"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLiveStore runs against a real Redis 7 when REDIS_ADDR is set; the Lua
// functions cannot be exercised through redismock.
func newLiveStore(t *testing.T, leaseTTL time.Duration) (*RedisStore, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, redis_functions.LoadAll(ctx, rdb))
	return NewRedisStore(rdb, leaseTTL), rdb
}

// liveRoom returns a room id unlikely to collide with other runs.
func liveRoom() string {
	n := uuid.New().ID() % 100000000
	return fmt.Sprintf("%04d-%04d", n/10000, n%10000)
}

func cleanupRoom(t *testing.T, s *RedisStore, room string, mode int) {
	t.Cleanup(func() {
		ctx := context.Background()
		recs, _ := s.QueryByRoomMode(ctx, room, mode)
		for _, r := range recs {
			_ = s.Delete(ctx, r.ConnectionID, ReasonDisconnect)
		}
		_ = s.rdc.Del(ctx, indexKey(room, mode)).Err()
	})
}

func TestRedisStoreLiveConcurrentJoin(t *testing.T) {
	s, _ := newLiveStore(t, time.Minute)
	ctx := context.Background()
	room := liveRoom()
	cleanupRoom(t, s, room, 1)

	var admitted, full atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InsertIfBelow(ctx, Record{ConnectionID: fmt.Sprintf("%s-c%d", room, i), RoomID: room, Mode: 1}, 4)
			switch {
			case err == nil:
				admitted.Add(1)
			default:
				assert.ErrorIs(t, err, ErrCapacityExceeded)
				full.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 4, admitted.Load())
	assert.EqualValues(t, 6, full.Load())
	n, err := s.Count(ctx, room, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRedisStoreLiveJoinSweepsExpiredMembers(t *testing.T) {
	s, rdb := newLiveStore(t, time.Minute)
	ctx := context.Background()
	room := liveRoom()
	cleanupRoom(t, s, room, 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.InsertIfBelow(ctx, Record{ConnectionID: fmt.Sprintf("%s-old%d", room, i), RoomID: room, Mode: 2}, 4))
	}
	require.ErrorIs(t, s.InsertIfBelow(ctx, Record{ConnectionID: room + "-new", RoomID: room, Mode: 2}, 4), ErrCapacityExceeded)

	// leases lapse while nothing listens for the expiry events
	require.NoError(t, rdb.Del(ctx, leaseKey(room+"-old0"), leaseKey(room+"-old1")).Err())

	require.NoError(t, s.InsertIfBelow(ctx, Record{ConnectionID: room + "-new", RoomID: room, Mode: 2}, 4))

	n, err := s.Count(ctx, room, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = s.Get(ctx, room+"-old0")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, room+"-old2")
	assert.NoError(t, err)
}
