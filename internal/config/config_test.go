package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.StoreDriver)
	assert.Equal(t, 4, cfg.RoomCapacity)
	assert.Equal(t, []int{1, 2}, cfg.RoomModes)
	assert.Equal(t, 90*time.Second, cfg.MemberTTL)
	assert.Equal(t, 54*time.Second, cfg.WsPingPeriod)
	assert.Equal(t, "ja", cfg.MessageLang)
	assert.False(t, cfg.MirrorEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ROOM_CAPACITY", "6")
	t.Setenv("ROOM_MODES", "1,2,3")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 6, cfg.RoomCapacity)
	assert.Equal(t, []int{1, 2, 3}, cfg.RoomModes)
	assert.True(t, cfg.MirrorEnabled())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("STORE_DRIVER", "dynamo")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroCapacity(t *testing.T) {
	t.Setenv("ROOM_CAPACITY", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigLeaseMustOutliveHeartbeat(t *testing.T) {
	t.Setenv("MEMBER_TTL", "30s")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrLeaseTooShort)

	t.Setenv("MEMBER_TTL", "500ms")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrLeaseTooShort)

	t.Setenv("MEMBER_TTL", "30s")
	t.Setenv("WS_PING_PERIOD", "20s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.MemberTTL)
}

func TestLoadConfigLeaseDisabled(t *testing.T) {
	t.Setenv("MEMBER_TTL", "0s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.MemberTTL)
}
