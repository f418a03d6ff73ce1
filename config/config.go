package config

import (
	"os"
	"strconv"
)

// Config carries the environment-driven settings of the daemon.
// Everything has a default so a bare process still starts.
type Config struct {
	// ControlURL is the websocket endpoint of the external controller.
	ControlURL string
	// ControlToken authenticates inbound control-channel requests. Empty
	// means every request is rejected with 401.
	ControlToken string
	// RedisAddr enables the redis-backed store when non-empty.
	RedisAddr string
	// RedisPassword is optional.
	RedisPassword string
	// RedisDB selects the redis database.
	RedisDB int
	// HTTPAddr is the local status API listen address.
	HTTPAddr string
}

// FromEnv reads configuration from environment variables.
// CONTROL_URL, CONTROL_TOKEN, REDIS_ADDR, REDIS_PASS, REDIS_DB, HTTP_ADDR.
func FromEnv() Config {
	cfg := Config{
		ControlURL: ControlEndpoint,
		HTTPAddr:   ":8080",
	}
	if v := os.Getenv("CONTROL_URL"); v != "" {
		cfg.ControlURL = v
	}
	cfg.ControlToken = os.Getenv("CONTROL_TOKEN")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASS")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTPAddr = ":" + v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	return cfg
}
