package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	DBPath           string        `mapstructure:"db_path"`
	AuthSecret       string        `mapstructure:"auth_secret"`
	AuthIssuer       string        `mapstructure:"auth_issuer"`
	AuthTimeout      time.Duration `mapstructure:"auth_timeout"`
	AppendTimeout    time.Duration `mapstructure:"append_timeout"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	MaxSlowDrops     int           `mapstructure:"max_slow_drops"`
	RoomGCInterval   time.Duration `mapstructure:"room_gc_interval"`
	RoomDrainTimeout time.Duration `mapstructure:"room_drain_timeout"`
	MaxContentLen    int           `mapstructure:"max_content_len"`
	ReadLimit        int64         `mapstructure:"read_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "chat.db")
	v.SetDefault("auth_secret", "change-me-in-production")
	v.SetDefault("auth_issuer", "chatapp-user-service")
	v.SetDefault("auth_timeout", "10s")
	v.SetDefault("append_timeout", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("max_slow_drops", 64)
	v.SetDefault("room_gc_interval", "30s")
	v.SetDefault("room_drain_timeout", "60s")
	v.SetDefault("max_content_len", 4096)
	v.SetDefault("read_limit", 32768)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
