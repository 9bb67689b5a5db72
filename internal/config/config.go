// Package config loads service configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Mailer struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type Push struct {
	// Subscriber is the contact address the push service may use,
	// sent with every VAPID-signed request.
	Subscriber string `mapstructure:"subscriber"`
}

type Scheduler struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Redis     Redis     `mapstructure:"redis"`
	Mailer    Mailer    `mapstructure:"mailer"`
	Push      Push      `mapstructure:"push"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	LogLevel  string    `mapstructure:"log_level"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mailer.url", "")
	v.SetDefault("mailer.token", "")
	v.SetDefault("push.subscriber", "mailto:admin@example.com")
	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("log_level", "info")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
