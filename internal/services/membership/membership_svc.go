package membership

import (
	"context"
	"errors"
	"fmt"

	"roomrelay/internal/registry"
	"roomrelay/internal/room"

	"go.uber.org/zap"
)

var (
	ErrInvalidRoomID    = errors.New("invalid room id")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrStoreFailure     = errors.New("store failure")
)

type OccupancyDTO struct {
	RoomID   string `json:"roomId"   example:"1234-5678"`
	Mode     int    `json:"mode"     example:"1"`
	Members  int    `json:"members"  example:"3"`
	Capacity int    `json:"capacity" example:"4"`
}

type IMembershipService interface {
	Register(ctx context.Context, connID, roomID, mode string) error
	Unregister(ctx context.Context, connID string) error
	Refresh(ctx context.Context, connID string) error
	Expire(ctx context.Context, connID string) error
	Occupancy(ctx context.Context, roomID, mode string) (*OccupancyDTO, error)
	Ping(ctx context.Context) error
}

type membershipService struct {
	store    registry.Store
	capacity int
	modes    []int
}

var _ = (*membershipService)(nil)

func NewMembershipService(store registry.Store, capacity int, modes []int) IMembershipService {
	if capacity <= 0 {
		capacity = room.DefaultCapacity
	}
	if len(modes) == 0 {
		modes = room.DefaultModes
	}
	return &membershipService{
		store:    store,
		capacity: capacity,
		modes:    modes,
	}
}

// Register validates the raw connect parameters and admits connID if the
// (room, mode) pair still has capacity. No record is written on failure.
func (svc *membershipService) Register(ctx context.Context, connID, roomID, modeRaw string) error {
	if !room.ValidRoomID(roomID) {
		return ErrInvalidRoomID
	}
	mode, ok := room.ParseMode(modeRaw, svc.modes)
	if !ok {
		return ErrInvalidMode
	}

	err := svc.store.InsertIfBelow(ctx, registry.Record{
		ConnectionID: connID,
		RoomID:       roomID,
		Mode:         mode,
	}, svc.capacity)
	switch {
	case err == nil:
		zap.L().Debug("membership.registered",
			zap.String("conn", connID), zap.String("room", roomID), zap.Int("mode", mode))
		return nil
	case errors.Is(err, registry.ErrCapacityExceeded):
		return ErrCapacityExceeded
	default:
		zap.L().Error("membership.register", zap.String("conn", connID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
}

// Unregister succeeds whether or not connID had a record.
func (svc *membershipService) Unregister(ctx context.Context, connID string) error {
	return svc.remove(ctx, connID, registry.ReasonDisconnect)
}

// Expire removes a membership whose lease ran out.
func (svc *membershipService) Expire(ctx context.Context, connID string) error {
	return svc.remove(ctx, connID, registry.ReasonExpired)
}

func (svc *membershipService) remove(ctx context.Context, connID string, reason registry.Reason) error {
	if err := svc.store.Delete(ctx, connID, reason); err != nil {
		zap.L().Error("membership.unregister", zap.String("conn", connID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return nil
}

func (svc *membershipService) Refresh(ctx context.Context, connID string) error {
	if err := svc.store.Touch(ctx, connID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return nil
}

func (svc *membershipService) Occupancy(ctx context.Context, roomID, modeRaw string) (*OccupancyDTO, error) {
	if !room.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	mode, ok := room.ParseMode(modeRaw, svc.modes)
	if !ok {
		return nil, ErrInvalidMode
	}
	n, err := svc.store.Count(ctx, roomID, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return &OccupancyDTO{RoomID: roomID, Mode: mode, Members: n, Capacity: svc.capacity}, nil
}

func (svc *membershipService) Ping(ctx context.Context) error {
	if err := svc.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return nil
}
