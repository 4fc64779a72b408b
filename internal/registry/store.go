package registry

import (
	"context"
	"errors"
)

// Record binds one live connection to a (room, mode) pair.
type Record struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
	Mode         int    `json:"mode"`
}

// Occupancy is the member count of one non-empty (room, mode) pair.
type Occupancy struct {
	RoomID  string `json:"room_id"`
	Mode    int    `json:"mode"`
	Members int    `json:"members"`
}

// Reason tells why a membership was removed. It ends up in the event stream.
type Reason string

const (
	ReasonDisconnect Reason = "disconnect"
	ReasonReconcile  Reason = "reconcile"
	ReasonExpired    Reason = "expired"
)

var (
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrAlreadyMember    = errors.New("connection already registered")
	ErrNotFound         = errors.New("membership not found")
	ErrStoreFailure     = errors.New("registry store failure")
)

// Store is the durable membership registry. Implementations must make
// InsertIfBelow atomic against concurrent inserts for the same (room, mode).
type Store interface {
	// InsertIfBelow inserts rec only while fewer than limit records share
	// its (room, mode). Returns ErrCapacityExceeded otherwise.
	InsertIfBelow(ctx context.Context, rec Record, limit int) error
	// Get returns ErrNotFound when no record exists for connID.
	Get(ctx context.Context, connID string) (Record, error)
	// Delete is idempotent.
	Delete(ctx context.Context, connID string, reason Reason) error
	QueryByRoomMode(ctx context.Context, roomID string, mode int) ([]Record, error)
	// Touch extends the membership lease. Missing records are ignored.
	Touch(ctx context.Context, connID string) error
	Count(ctx context.Context, roomID string, mode int) (int, error)
	Rooms(ctx context.Context) ([]Occupancy, error)
	Ping(ctx context.Context) error
}
