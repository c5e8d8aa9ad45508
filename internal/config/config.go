package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds server configuration.
type Config struct {
	Server struct {
		Address   string `mapstructure:"address"`
		JWTSecret string `mapstructure:"jwtSecret"`
		LogLevel  string `mapstructure:"logLevel"`
	} `mapstructure:"server"`
	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`
	Relay struct {
		// Empty RedisURL disables the cross-node relay.
		RedisURL string `mapstructure:"redisURL"`
	} `mapstructure:"relay"`
	Session struct {
		AckTimeout  time.Duration `mapstructure:"ackTimeout"`
		WriteWait   time.Duration `mapstructure:"writeWait"`
		PongWait    time.Duration `mapstructure:"pongWait"`
		MaxMsgBytes int64         `mapstructure:"maxMsgBytes"`
	} `mapstructure:"session"`
}

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.jwtSecret", "default-secret-key-change-me")
	v.SetDefault("server.logLevel", "info")
	v.SetDefault("db.path", "collab.db")
	v.SetDefault("relay.redisURL", "")
	v.SetDefault("session.ackTimeout", "10s")
	v.SetDefault("session.writeWait", "10s")
	v.SetDefault("session.pongWait", "60s")
	v.SetDefault("session.maxMsgBytes", 512*1024)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		logger.Warn("Config file not found. relying on defaults/env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
