package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ErrLeaseTooShort is returned when a lease could lapse between two
// heartbeats.
var ErrLeaseTooShort = errors.New("MEMBER_TTL must be 0 or longer than WS_PING_PERIOD")

type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"redis" validate:"oneof=redis memory"`

	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379" validate:"min=1000,max=65535"`
	RedisDb   int    `env:"REDIS_DB"   envDefault:"0"    validate:"min=0,max=15"`

	// An empty POSTGRES_HOST disables the relational mirror.
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"relay_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"relay_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"relay_db"`

	RoomCapacity int           `env:"ROOM_CAPACITY" envDefault:"4"     validate:"min=1"`
	RoomModes    []int         `env:"ROOM_MODES"    envDefault:"1,2"   envSeparator:"," validate:"min=1,dive,min=1"`
	MemberTTL    time.Duration `env:"MEMBER_TTL"    envDefault:"90s"   validate:"min=0s"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"10s"   validate:"min=1s"`
	FanoutLimit  int           `env:"FANOUT_LIMIT"  envDefault:"8"     validate:"min=1"`
	WsReadLimit  int64         `env:"WS_READ_LIMIT" envDefault:"65536" validate:"min=512"`
	WsPingPeriod time.Duration `env:"WS_PING_PERIOD" envDefault:"54s"  validate:"min=1s"`

	MessageLang string `env:"MESSAGE_LANG" envDefault:"ja"      validate:"oneof=ja en"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"console" validate:"oneof=console json"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

// MirrorEnabled reports whether Postgres is configured.
func (c *Config) MirrorEnabled() bool { return c.PostgresHost != "" }

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if cfg.MemberTTL != 0 && cfg.MemberTTL <= cfg.WsPingPeriod {
		err = fmt.Errorf("%w: ttl=%s ping=%s", ErrLeaseTooShort, cfg.MemberTTL, cfg.WsPingPeriod)
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
