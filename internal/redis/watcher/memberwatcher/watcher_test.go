package memberwatcher

import (
	"context"
	"testing"

	"roomrelay/internal/registry"
	"roomrelay/internal/services/membership"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleExpired(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := membership.NewMembershipService(store, 4, nil)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "c1", "1234-5678", "1"))

	assert.False(t, handleExpired(ctx, svc, "rr:m:c1"))
	assert.False(t, handleExpired(ctx, svc, "rr:l:"))
	assert.True(t, handleExpired(ctx, svc, "rr:l:c1"))

	_, err := store.Get(ctx, "c1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	// already gone is fine
	assert.True(t, handleExpired(ctx, svc, "rr:l:c1"))
}
