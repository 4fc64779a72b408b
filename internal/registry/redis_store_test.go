package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1700000000, 0)

func newMockStore(t *testing.T) (*RedisStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, 90*time.Second)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return s, mock
}

func joinKeys(conn, room, mode string) []string {
	return []string{"rr:m:" + conn, "rr:ix:" + room + ":" + mode, "rr:l:" + conn, EventStream}
}

func TestRedisStoreInsert(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectFCall("membership_join", joinKeys("c1", "1234-5678", "1"),
		"c1", "1234-5678", "1", "4", "90", "1700000000").SetVal(int64(1))
	require.NoError(t, s.InsertIfBelow(ctx, Record{ConnectionID: "c1", RoomID: "1234-5678", Mode: 1}, 4))

	mock.ExpectFCall("membership_join", joinKeys("c5", "1234-5678", "1"),
		"c5", "1234-5678", "1", "4", "90", "1700000000").SetErr(errors.New("room_full"))
	err := s.InsertIfBelow(ctx, Record{ConnectionID: "c5", RoomID: "1234-5678", Mode: 1}, 4)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	mock.ExpectFCall("membership_join", joinKeys("c1", "1234-5678", "2"),
		"c1", "1234-5678", "2", "4", "90", "1700000000").SetErr(errors.New("member_exists"))
	err = s.InsertIfBelow(ctx, Record{ConnectionID: "c1", RoomID: "1234-5678", Mode: 2}, 4)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestRedisStoreInsertConnectivityFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectFCall("membership_join", joinKeys("c1", "1234-5678", "1"),
		"c1", "1234-5678", "1", "4", "90", "1700000000").SetErr(errors.New("dial tcp: connection refused"))
	err := s.InsertIfBelow(context.Background(), Record{ConnectionID: "c1", RoomID: "1234-5678", Mode: 1}, 4)
	require.ErrorIs(t, err, ErrStoreFailure)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedisStoreGet(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectHMGet("rr:m:c1", "room", "mode").SetVal([]interface{}{"1234-5678", "2"})
	rec, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, Record{ConnectionID: "c1", RoomID: "1234-5678", Mode: 2}, rec)

	mock.ExpectHMGet("rr:m:gone", "room", "mode").SetVal([]interface{}{nil, nil})
	_, err = s.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectHMGet("rr:m:c1", "room", "mode").SetVal([]interface{}{"1234-5678", "1"})
	mock.ExpectFCall("membership_leave", joinKeys("c1", "1234-5678", "1"),
		"c1", "reconcile", "1700000000").SetVal(int64(1))
	require.NoError(t, s.Delete(ctx, "c1", ReasonReconcile))

	// deleting an absent record is not an error
	mock.ExpectHMGet("rr:m:c1", "room", "mode").SetVal([]interface{}{nil, nil})
	require.NoError(t, s.Delete(ctx, "c1", ReasonDisconnect))
}

func TestRedisStoreQueryAndCount(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectSMembers("rr:ix:1234-5678:1").SetVal([]string{"a", "b"})
	recs, err := s.QueryByRoomMode(ctx, "1234-5678", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Record{
		{ConnectionID: "a", RoomID: "1234-5678", Mode: 1},
		{ConnectionID: "b", RoomID: "1234-5678", Mode: 1},
	}, recs)

	mock.ExpectSCard("rr:ix:1234-5678:1").SetVal(2)
	n, err := s.Count(ctx, "1234-5678", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisStoreTouch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectFCall("membership_touch", []string{"rr:m:c1", "rr:l:c1"}, "90").SetVal(int64(1))
	require.NoError(t, s.Touch(context.Background(), "c1"))
}

func TestRedisStoreRooms(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectScan(0, "rr:ix:*", 200).SetVal([]string{"rr:ix:1234-5678:1", "rr:ix:1111-2222:2"}, 0)
	mock.ExpectSCard("rr:ix:1234-5678:1").SetVal(3)
	mock.ExpectSCard("rr:ix:1111-2222:2").SetVal(0)

	rooms, err := s.Rooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Occupancy{{RoomID: "1234-5678", Mode: 1, Members: 3}}, rooms)
}

func TestParseIndexKey(t *testing.T) {
	room, mode, ok := parseIndexKey("rr:ix:1234-5678:2")
	require.True(t, ok)
	assert.Equal(t, "1234-5678", room)
	assert.Equal(t, 2, mode)

	_, _, ok = parseIndexKey("rr:ix:1234-5678")
	assert.False(t, ok)
}
