package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WS struct {
	ReadLimit   int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod  time.Duration `mapstructure:"ping_period" validate:"gte=0"`
	WriteWait   time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	SendBuffer  int           `mapstructure:"send_buffer" validate:"gt=0"`

	// RateLimit frames per RateInterval per user; 0 disables.
	RateLimit    int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateInterval time.Duration `mapstructure:"rate_interval" validate:"gte=0"`
}

type Storage struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite memory"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
}

type Calls struct {
	MaxHistoryLimit int    `mapstructure:"max_history_limit" validate:"gt=0"`
	EndPolicy       string `mapstructure:"end_policy" validate:"oneof=open participants"`
}

type Config struct {
	Mode      string  `mapstructure:"mode" validate:"oneof=debug release test"`
	Port      int     `mapstructure:"port" validate:"gte=1,lte=65535"`
	APIPrefix string  `mapstructure:"api_prefix" validate:"startswith=/"`
	Secret    string  `mapstructure:"secret" validate:"required"`
	CORS      CORS    `mapstructure:"cors"`
	WS        WS      `mapstructure:"ws"`
	Storage   Storage `mapstructure:"storage"`
	Calls     Calls   `mapstructure:"calls"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8000)
	v.SetDefault("api_prefix", "/api/v1")
	v.SetDefault("secret", "should-be-changed-in-production-env")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8000"})
	v.SetDefault("ws.read_limit", 65536)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.write_wait", "5s")
	v.SetDefault("ws.idle_timeout", "0s")
	v.SetDefault("ws.send_buffer", 32)
	v.SetDefault("ws.rate_limit", 0)
	v.SetDefault("ws.rate_interval", "1s")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/calls.db")
	v.SetDefault("calls.max_history_limit", 200)
	v.SetDefault("calls.end_policy", "open")
}

// Load reads config/config.{CONFIG_ENV}.yaml, then TELEHEALTH_* env vars.
// A missing file falls back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("TELEHEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}
