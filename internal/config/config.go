package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                    string
	DatabaseURL             string
	ClinicTimezone          string
	AnnounceProvider        string
	AnnounceWebhookURL      string
	AnnounceWebhookToken    string
	RateLimitPerMinute      int
	RateLimitBurst          int
	ActorRateLimitPerMinute int
	ActorRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                    port,
		DatabaseURL:             os.Getenv("DB_DSN"),
		ClinicTimezone:          os.Getenv("CLINIC_TIMEZONE"),
		AnnounceProvider:        os.Getenv("ANNOUNCE_PROVIDER"),
		AnnounceWebhookURL:      os.Getenv("ANNOUNCE_WEBHOOK_URL"),
		AnnounceWebhookToken:    os.Getenv("ANNOUNCE_WEBHOOK_TOKEN"),
		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		ActorRateLimitPerMinute: readInt("ACTOR_RATE_LIMIT_PER_MIN", 600),
		ActorRateLimitBurst:     readInt("ACTOR_RATE_LIMIT_BURST", 120),
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
