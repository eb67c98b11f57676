package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration, read from the environment with
// defaults suitable for local runs.
type Config struct {
	HTTPAddr    string // REST surface
	WSAddr      string // market-data websocket surface
	MetricsAddr string // Prometheus /metrics listener

	DefaultDepth   int // snapshot depth when the caller gives none
	TradeTailLimit int // default limit of the recent-trades query

	BroadcastWorkers int // market-data fan-out pool size
	ClientQueueSize  int // per-client outbound message buffer

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:         getEnv("VIDAR_HTTP_ADDR", "0.0.0.0:5000"),
		WSAddr:           getEnv("VIDAR_WS_ADDR", "0.0.0.0:8765"),
		MetricsAddr:      getEnv("VIDAR_METRICS_ADDR", "0.0.0.0:9100"),
		DefaultDepth:     getEnvInt("VIDAR_DEFAULT_DEPTH", 10),
		TradeTailLimit:   getEnvInt("VIDAR_TRADE_TAIL_LIMIT", 50),
		BroadcastWorkers: getEnvInt("VIDAR_BROADCAST_WORKERS", 4),
		ClientQueueSize:  getEnvInt("VIDAR_CLIENT_QUEUE_SIZE", 256),
		ReadTimeout:      getEnvDuration("VIDAR_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:     getEnvDuration("VIDAR_WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout:  getEnvDuration("VIDAR_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
