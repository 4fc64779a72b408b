package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// Library is the name declared in the shebang line of membership.lua.
const Library = "roomrelay"

// Function names registered by membership.lua.
const (
	MembershipJoin  = "membership_join"
	MembershipLeave = "membership_leave"
	MembershipTouch = "membership_touch"
)

// LoadAll loads/replaces every embedded Lua library in Redis and checks that
// the membership library is registered afterwards.
func LoadAll(ctx context.Context, rdb *redis.Client) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		if err := rdb.FunctionLoadReplace(ctx, string(code)).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		zap.L().Info("lua function loaded", zap.String("file", f.Name()))
	}

	libs, err := rdb.FunctionList(ctx, redis.FunctionListQuery{LibraryNamePattern: Library}).Result()
	if err != nil {
		return fmt.Errorf("function list: %w", err)
	}
	if len(libs) == 0 {
		return fmt.Errorf("lua library %q not registered", Library)
	}
	return nil
}
