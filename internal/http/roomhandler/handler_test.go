package roomhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"roomrelay/internal/registry"
	"roomrelay/internal/services/membership"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*gin.Engine, membership.IMembershipService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := membership.NewMembershipService(registry.NewMemoryStore(), 4, []int{1, 2})
	r := gin.New()
	New(svc).Register(r)
	return r, svc
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestOccupancy(t *testing.T) {
	r, svc := newEngine(t)
	require.NoError(t, svc.Register(context.Background(), "c1", "1234-5678", "2"))

	w := get(r, "/rooms/1234-5678/modes/2")
	require.Equal(t, http.StatusOK, w.Code)

	var dto membership.OccupancyDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, membership.OccupancyDTO{RoomID: "1234-5678", Mode: 2, Members: 1, Capacity: 4}, dto)
}

func TestOccupancyBadInput(t *testing.T) {
	r, _ := newEngine(t)

	assert.Equal(t, http.StatusBadRequest, get(r, "/rooms/abcd-efgh/modes/1").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/rooms/1234-5678/modes/99").Code)
}

func TestHealth(t *testing.T) {
	r, _ := newEngine(t)

	w := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
