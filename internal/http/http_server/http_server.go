package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"roomrelay/internal/http/roomhandler"
	"roomrelay/internal/services/membership"
	"roomrelay/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort    uint16
	srv           http.Server
	ln            net.Listener
	membershipSvc membership.IMembershipService
	wsSrv         *ws.WsServer
	ctx           context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, membershipSvc membership.IMembershipService) *httpServer {
	return &httpServer{
		listenPort:    listenPort,
		wsSrv:         wsSrv,
		membershipSvc: membershipSvc,
		ctx:           ctx,
	}
}

// Engine builds the router. Split from Start so tests can drive it.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint: /ws?roomId=1234-5678&mode=1
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	rh := roomhandler.New(h.membershipSvc)
	rh.Register(routerEngine)

	return routerEngine
}

// Start blocks until the server stops. A Dispose call returns nil here.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http_listen", zap.String("addr", listenAddr))

	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}
	return nil
}
