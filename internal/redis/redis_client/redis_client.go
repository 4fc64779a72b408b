package redis_client

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient returns a pinged Redis client for the membership registry.
// Timeouts are short so a dead store surfaces as a failed admission instead
// of a hung connect.
func NewRedisClient(host string, port int, db int) (*redis.Client, error) {

	maxPool := runtime.NumCPU() * 8
	if maxPool > 512 {
		maxPool = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		DB:           db,
		PoolSize:     maxPool,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()
	_, err := rc.Ping(ctx).Result()
	if err != nil {
		_ = rc.Close()
		err = errors.New("Redis connection failed: " + err.Error())
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
