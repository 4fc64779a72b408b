package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"roomrelay/internal/registry"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrSenderNotRegistered = errors.New("sender not registered")
	ErrStoreFailure        = errors.New("store failure")

	// ErrPeerGone is returned by a Transport when the target connection no
	// longer exists. The dispatcher reconciles the peer's membership away.
	ErrPeerGone = errors.New("peer connection gone")
)

// ResultMessage is the body a client sends to share its result. RoomID and
// Mode are informational; routing uses the sender's stored membership.
type ResultMessage struct {
	RoomID string `json:"roomId"`
	Mode   int    `json:"mode"`
	UserID string `json:"userId" validate:"required"`
	Name   string `json:"name"   validate:"required"`
	Result string `json:"result" validate:"required"`
}

// Transport delivers a frame to one connection.
type Transport interface {
	Send(ctx context.Context, connID string, payload []byte) error
}

// Report summarises one fan-out.
type Report struct {
	Peers      int `json:"peers"`
	Delivered  int `json:"delivered"`
	Reconciled int `json:"reconciled"`
	Failed     int `json:"failed"`
}

type IBroadcastService interface {
	Dispatch(ctx context.Context, senderID string, raw []byte) (*Report, error)
}

type broadcastService struct {
	store       registry.Store
	transport   Transport
	parallelism int
	validate    *validator.Validate
}

var _ = (*broadcastService)(nil)

func NewBroadcastService(store registry.Store, transport Transport, parallelism int) IBroadcastService {
	if parallelism <= 0 {
		parallelism = 8
	}
	return &broadcastService{
		store:       store,
		transport:   transport,
		parallelism: parallelism,
		validate:    validator.New(),
	}
}

// Dispatch forwards raw verbatim to every other member of the sender's
// (room, mode). Per-peer failures never fail the call.
func (svc *broadcastService) Dispatch(ctx context.Context, senderID string, raw []byte) (*Report, error) {
	// raw is forwarded verbatim as a text frame, so it must be valid UTF-8.
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformedPayload)
	}

	var msg ResultMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := svc.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	sender, err := svc.store.Get(ctx, senderID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, ErrSenderNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	members, err := svc.store.QueryByRoomMode(ctx, sender.RoomID, sender.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	var delivered, reconciled, failed atomic.Int32
	peers := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.parallelism)
	for _, m := range members {
		if m.ConnectionID == senderID {
			continue
		}
		peers++
		peerID := m.ConnectionID
		g.Go(func() error {
			err := svc.transport.Send(gctx, peerID, raw)
			switch {
			case err == nil:
				delivered.Add(1)
			case errors.Is(err, ErrPeerGone):
				zap.L().Info("broadcast.peer_gone",
					zap.String("peer", peerID), zap.String("room", sender.RoomID), zap.Int("mode", sender.Mode))
				if err := svc.store.Delete(gctx, peerID, registry.ReasonReconcile); err != nil {
					zap.L().Warn("broadcast.reconcile", zap.String("peer", peerID), zap.Error(err))
				}
				reconciled.Add(1)
			default:
				zap.L().Warn("broadcast.send", zap.String("peer", peerID), zap.Error(err))
				failed.Add(1)
			}
			return nil // one peer never aborts the rest
		})
	}
	_ = g.Wait()

	return &Report{
		Peers:      peers,
		Delivered:  int(delivered.Load()),
		Reconciled: int(reconciled.Load()),
		Failed:     int(failed.Load()),
	}, nil
}
