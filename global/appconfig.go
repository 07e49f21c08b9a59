package global

import (
	"os"
	"strconv"
)

type AppConfig struct {
	Addr          string // http listen address
	GatewayNodeId string // node id for this process
	SnowNodeID    int64  // snowflake node id
	SessionSecret string // HMAC secret shared with the session provider
	RedisAddr     string // empty => in-memory store
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from the environment with sane defaults.
func Load() AppConfig {
	cfg := AppConfig{
		Addr:          getenv("RT_ADDR", ":3000"),
		GatewayNodeId: getenv("RT_NODE_ID", "gw-1"),
		SnowNodeID:    1,
		SessionSecret: getenv("RT_SESSION_SECRET", "dev-secret-do-not-use"),
		RedisAddr:     os.Getenv("RT_REDIS_ADDR"),
		RedisPassword: os.Getenv("RT_REDIS_PASSWORD"),
	}
	if v := os.Getenv("RT_SNOW_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SnowNodeID = n
		}
	}
	if v := os.Getenv("RT_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
