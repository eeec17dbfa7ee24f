package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Bakong  BakongConfig
	Monitor MonitorConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type BakongConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

type MonitorConfig struct {
	TickIntervalSec int64 `mapstructure:"tick_interval_sec"`
	MaxWatchMin     int64 `mapstructure:"max_watch_min"`
}

func (m MonitorConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalSec) * time.Second
}

func (m MonitorConfig) MaxWatch() time.Duration {
	return time.Duration(m.MaxWatchMin) * time.Minute
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("monitor.tick_interval_sec", 10)
	v.SetDefault("monitor.max_watch_min", 30)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":               "PORT",
		"redis.addr":                "REDIS_ADDR",
		"redis.password":            "REDIS_PASSWORD",
		"bakong.api_url":            "BAKONG_API_URL",
		"bakong.token":              "BAKONG_TOKEN",
		"monitor.tick_interval_sec": "MONITOR_TICK_SEC",
		"monitor.max_watch_min":     "MONITOR_MAX_WATCH_MIN",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Bakong.APIURL, "BAKONG_API_URL"},
		{c.Bakong.Token, "BAKONG_TOKEN"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Monitor.TickIntervalSec <= 0 {
		return fmt.Errorf("MONITOR_TICK_SEC must be positive")
	}
	if c.Monitor.MaxWatchMin <= 0 {
		return fmt.Errorf("MONITOR_MAX_WATCH_MIN must be positive")
	}
	return nil
}
