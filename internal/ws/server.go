package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	eventTimeout = 5 * time.Second

	// DefaultPingPeriod also paces heartbeats, so membership leases must
	// outlive it.
	DefaultPingPeriod = 54 * time.Second
)

type WsServer struct {
	hub        *Hub
	bus        *Bus // nil on a single instance
	router     *Router
	upgrader   websocket.Upgrader
	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration // must be > pingPeriod
}

func NewWsServer(hub *Hub, bus *Bus, router *Router, readLimit int64, pingPeriod time.Duration) *WsServer {
	if pingPeriod <= 0 {
		pingPeriod = DefaultPingPeriod
	}
	return &WsServer{
		pingPeriod: pingPeriod,
		pongWait:   pingPeriod * 10 / 9,
		hub:    hub,
		bus:    bus,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true }, // any origin
		},
		readLimit: readLimit,
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle admits the connection before upgrading. A rejected connect is
// answered as plain HTTP with the handler's status and message.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	connID := uuid.NewString()
	ctx := ginCtx.Request.Context()

	// Reserve the slot first so frames sent to us right after admission
	// are queued instead of reported as a gone peer.
	cc := s.hub.reserve(connID)
	if s.bus != nil {
		if err := s.bus.Subscribe(ctx, connID); err != nil {
			zap.L().Error("ws.subscribe", zap.String("conn", connID), zap.Error(err))
			s.hub.release(connID)
			ginCtx.JSON(http.StatusServiceUnavailable, ErrorBody{Error: "delivery channel unavailable"})
			return
		}
	}

	resp := s.router.Dispatch(ctx, Event{
		Kind:         EventConnect,
		ConnectionID: connID,
		Params: map[string]string{
			"roomId": ginCtx.Query("roomId"),
			"mode":   ginCtx.Query("mode"),
		},
	})
	if !resp.Ok() {
		s.forget(connID)
		ginCtx.JSON(resp.StatusCode, resp)
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.String("conn", connID), zap.Error(err))
		s.disconnect(connID)
		return
	}
	rawConn.SetReadLimit(s.readLimit)

	// ─────────────────── Client joined ────────────────────────
	if err := cc.attach(rawConn, resp); err != nil {
		zap.L().Warn("ws.attach", zap.String("conn", connID), zap.Error(err))
		s.disconnect(connID)
		return
	}

	go s.reader(cc)
	go s.pinger(cc)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(cc *clientConn) {
	defer s.disconnect(cc.id)

	raw := cc.rawConn
	_ = raw.SetReadDeadline(time.Now().Add(s.pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		mt, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", cc.id), zap.Error(err))
			}
			return // client closed or errored
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		resp := s.router.Dispatch(ctx, Event{Kind: EventMessage, ConnectionID: cc.id, Body: data})
		cancel()

		// ---- error -> {"statusCode":500,"body":"..."} ---------------
		if !resp.Ok() {
			_ = cc.writeJSON(resp)
		}
	}
}

func (s *WsServer) pinger(cc *clientConn) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cc.done:
			return
		case <-ticker.C:
		}

		if err := cc.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			_ = cc.rawConn.Close() // unblocks the reader, which disconnects
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		resp := s.router.Dispatch(ctx, Event{Kind: EventHeartbeat, ConnectionID: cc.id})
		cancel()
		if !resp.Ok() {
			zap.L().Warn("ws.heartbeat", zap.String("conn", cc.id), zap.String("body", resp.Body))
		}
	}
}

// disconnect runs the disconnect event and frees local resources.
func (s *WsServer) disconnect(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	_ = s.router.Dispatch(ctx, Event{Kind: EventDisconnect, ConnectionID: connID})
	s.forget(connID)
}

func (s *WsServer) forget(connID string) {
	s.hub.release(connID)
	if s.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := s.bus.Unsubscribe(ctx, connID); err != nil {
			zap.L().Warn("ws.unsubscribe", zap.String("conn", connID), zap.Error(err))
		}
	}
}
