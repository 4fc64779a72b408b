package lifecycle

import (
	"context"
	"errors"

	"roomrelay/internal/services/broadcast"
	"roomrelay/internal/services/membership"
	"roomrelay/internal/ws"

	"go.uber.org/zap"
)

// Handler turns connection events into membership and broadcast calls and
// maps every failure to a status code plus a localized message.
type Handler struct {
	members   membership.IMembershipService
	broadcast broadcast.IBroadcastService
	msg       Catalog
}

func New(members membership.IMembershipService, bc broadcast.IBroadcastService, msg Catalog) *Handler {
	return &Handler{members: members, broadcast: bc, msg: msg}
}

func (h *Handler) Register(r *ws.Router) {
	r.Handle(ws.EventConnect, h.connect)
	r.Handle(ws.EventMessage, h.message)
	r.Handle(ws.EventDisconnect, h.disconnect)
	r.Handle(ws.EventHeartbeat, h.heartbeat)
}

func (h *Handler) connect(ctx context.Context, ev ws.Event) ws.Response {
	err := h.members.Register(ctx, ev.ConnectionID, ev.Params["roomId"], ev.Params["mode"])
	switch {
	case err == nil:
		return ws.OK(h.msg.Connected)
	case errors.Is(err, membership.ErrInvalidRoomID):
		return ws.Fail(h.msg.InvalidRoomID)
	case errors.Is(err, membership.ErrInvalidMode):
		return ws.Fail(h.msg.InvalidMode)
	case errors.Is(err, membership.ErrCapacityExceeded):
		return ws.Fail(h.msg.CapacityExceeded)
	default:
		zap.L().Error("lifecycle.connect", zap.String("conn", ev.ConnectionID), zap.Error(err))
		return ws.Fail(h.msg.ConnectFailed)
	}
}

func (h *Handler) message(ctx context.Context, ev ws.Event) ws.Response {
	rep, err := h.broadcast.Dispatch(ctx, ev.ConnectionID, ev.Body)
	switch {
	case err == nil:
		zap.L().Debug("lifecycle.message",
			zap.String("conn", ev.ConnectionID),
			zap.Int("peers", rep.Peers),
			zap.Int("delivered", rep.Delivered),
			zap.Int("reconciled", rep.Reconciled),
			zap.Int("failed", rep.Failed))
		return ws.OK("")
	case errors.Is(err, broadcast.ErrMalformedPayload):
		return ws.Fail(h.msg.MalformedPayload)
	case errors.Is(err, broadcast.ErrSenderNotRegistered):
		return ws.Fail(h.msg.NotInRoom)
	default:
		zap.L().Error("lifecycle.message", zap.String("conn", ev.ConnectionID), zap.Error(err))
		return ws.Fail(h.msg.SendFailed)
	}
}

// disconnect always succeeds; the peer cannot retry it.
func (h *Handler) disconnect(ctx context.Context, ev ws.Event) ws.Response {
	if err := h.members.Unregister(ctx, ev.ConnectionID); err != nil {
		zap.L().Warn("lifecycle.disconnect", zap.String("conn", ev.ConnectionID), zap.Error(err))
	}
	return ws.OK("")
}

func (h *Handler) heartbeat(ctx context.Context, ev ws.Event) ws.Response {
	if err := h.members.Refresh(ctx, ev.ConnectionID); err != nil {
		return ws.Fail(err.Error())
	}
	return ws.OK("")
}
