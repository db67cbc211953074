package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs, loaded from the environment
// (optionally seeded from a .env file).
type Config struct {
	BskyUsername string
	BskyPassword string
	BskyPdsHost  string

	TelegramToken string
	ChatID        int64
	TopicID       int
	OwnerID       int64

	RedisHost string
	RedisPort string

	SyncInterval time.Duration
	FetchLimit   int64
	SessionFile  string
	Timezone     string
	MetricsPort  int
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments use plain env vars.
	_ = godotenv.Load()

	cfg := &Config{
		BskyUsername:  os.Getenv("BSKY_USERNAME"),
		BskyPassword:  os.Getenv("BSKY_PASSWORD"),
		BskyPdsHost:   stringFromEnv("BSKY_PDS_HOST", "https://bsky.social"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		RedisHost:     stringFromEnv("REDIS_HOST", "localhost"),
		RedisPort:     stringFromEnv("REDIS_PORT", "6379"),
		SessionFile:   stringFromEnv("SESSION_FILE", "data/session.json"),
		Timezone:      stringFromEnv("TIMEZONE", "Asia/Shanghai"),
		FetchLimit:    int64(intFromEnv("TIMELINE_FETCH_LIMIT", 50)),
		TopicID:       intFromEnv("TELEGRAM_TOPIC_ID", 0),
		MetricsPort:   intFromEnv("METRICS_PORT", 9100),
	}
	cfg.SyncInterval = time.Duration(intFromEnv("SYNC_INTERVAL_SECONDS", 60)) * time.Second

	var err error
	if cfg.ChatID, err = int64FromEnv("TELEGRAM_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.OwnerID, err = int64FromEnv("TELEGRAM_OWNER_ID"); err != nil {
		return nil, err
	}

	for name, value := range map[string]string{
		"BSKY_USERNAME":  cfg.BskyUsername,
		"BSKY_PASSWORD":  cfg.BskyPassword,
		"TELEGRAM_TOKEN": cfg.TelegramToken,
	} {
		if value == "" {
			return nil, fmt.Errorf("missing required env var %s", name)
		}
	}
	return cfg, nil
}

// Location resolves the render timezone, falling back to UTC when the name
// is unknown.
func (c *Config) Location() *time.Location {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return location
}

func stringFromEnv(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(name string, defaultValue int) int {
	atoi, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return atoi
}

func int64FromEnv(name string) (int64, error) {
	value, err := strconv.ParseInt(os.Getenv(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid or missing env var %s", name)
	}
	return value, nil
}
