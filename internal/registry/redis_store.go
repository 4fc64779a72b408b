package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"roomrelay/internal/redis/redis_functions"

	"github.com/redis/go-redis/v9"
)

// Member and lease prefixes are repeated in membership.lua.
const (
	redisMemberKeyPrefix = "rr:m:"  // hash: room, mode, at
	redisIndexKeyPrefix  = "rr:ix:" // set of connection ids per room:mode
	redisLeaseKeyPrefix  = "rr:l:"  // expiring lease, refreshed by heartbeats

	// EventStream receives join/leave events from the Lua functions.
	EventStream = "rr:events"
)

// LeaseKeyPrefix is exported for the expiry watcher.
const LeaseKeyPrefix = redisLeaseKeyPrefix

func memberKey(connID string) string { return redisMemberKeyPrefix + connID }
func leaseKey(connID string) string  { return redisLeaseKeyPrefix + connID }
func indexKey(roomID string, mode int) string {
	return redisIndexKeyPrefix + roomID + ":" + strconv.Itoa(mode)
}

// RedisStore keeps memberships in Redis. Inserts and deletes run inside the
// membership Lua functions so the capacity check and the write are atomic.
type RedisStore struct {
	rdc      *redis.Client
	leaseTTL time.Duration
	now      func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdc *redis.Client, leaseTTL time.Duration) *RedisStore {
	return &RedisStore{rdc: rdc, leaseTTL: leaseTTL, now: time.Now}
}

func (s *RedisStore) InsertIfBelow(ctx context.Context, rec Record, limit int) error {
	err := s.rdc.FCall(ctx, redis_functions.MembershipJoin,
		[]string{
			memberKey(rec.ConnectionID),
			indexKey(rec.RoomID, rec.Mode),
			leaseKey(rec.ConnectionID),
			EventStream,
		},
		rec.ConnectionID,
		rec.RoomID,
		strconv.Itoa(rec.Mode),
		strconv.Itoa(limit),
		strconv.Itoa(int(s.leaseTTL/time.Second)),
		strconv.FormatInt(s.now().Unix(), 10),
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "room_full") {
			return ErrCapacityExceeded
		}
		if strings.Contains(err.Error(), "member_exists") {
			return ErrAlreadyMember
		}
		return storeErr("join", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, connID string) (Record, error) {
	vals, err := s.rdc.HMGet(ctx, memberKey(connID), "room", "mode").Result()
	if err != nil {
		return Record{}, storeErr("get", err)
	}
	room, _ := vals[0].(string)
	modeStr, _ := vals[1].(string)
	if room == "" {
		return Record{}, ErrNotFound
	}
	mode, err := strconv.Atoi(modeStr)
	if err != nil {
		return Record{}, storeErr("get", fmt.Errorf("bad mode %q for %s", modeStr, connID))
	}
	return Record{ConnectionID: connID, RoomID: room, Mode: mode}, nil
}

func (s *RedisStore) Delete(ctx context.Context, connID string, reason Reason) error {
	rec, err := s.Get(ctx, connID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.rdc.FCall(ctx, redis_functions.MembershipLeave,
		[]string{
			memberKey(connID),
			indexKey(rec.RoomID, rec.Mode),
			leaseKey(connID),
			EventStream,
		},
		connID,
		string(reason),
		strconv.FormatInt(s.now().Unix(), 10),
	).Err()
	if err != nil {
		return storeErr("leave", err)
	}
	return nil
}

func (s *RedisStore) QueryByRoomMode(ctx context.Context, roomID string, mode int) ([]Record, error) {
	ids, err := s.rdc.SMembers(ctx, indexKey(roomID, mode)).Result()
	if err != nil {
		return nil, storeErr("query", err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, Record{ConnectionID: id, RoomID: roomID, Mode: mode})
	}
	return out, nil
}

func (s *RedisStore) Touch(ctx context.Context, connID string) error {
	if s.leaseTTL <= 0 {
		return nil
	}
	err := s.rdc.FCall(ctx, redis_functions.MembershipTouch,
		[]string{memberKey(connID), leaseKey(connID)},
		strconv.Itoa(int(s.leaseTTL/time.Second)),
	).Err()
	if err != nil {
		return storeErr("touch", err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context, roomID string, mode int) (int, error) {
	n, err := s.rdc.SCard(ctx, indexKey(roomID, mode)).Result()
	if err != nil {
		return 0, storeErr("count", err)
	}
	return int(n), nil
}

// Rooms scans the index keys and counts members in one pipelined round-trip.
func (s *RedisStore) Rooms(ctx context.Context) ([]Occupancy, error) {
	var keys []string
	iter := s.rdc.Scan(ctx, 0, redisIndexKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storeErr("scan", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.rdc.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.SCard(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr("scard", err)
	}

	out := make([]Occupancy, 0, len(keys))
	for i, k := range keys {
		n := cmds[i].Val()
		if n == 0 {
			continue // set emptied between SCAN and SCARD
		}
		room, mode, ok := parseIndexKey(k)
		if !ok {
			continue
		}
		out = append(out, Occupancy{RoomID: room, Mode: mode, Members: int(n)})
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdc.Ping(ctx).Err(); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// "rr:ix:<room>:<mode>"
func parseIndexKey(k string) (string, int, bool) {
	rest := strings.TrimPrefix(k, redisIndexKeyPrefix)
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", 0, false
	}
	mode, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return "", 0, false
	}
	return rest[:i], mode, true
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
