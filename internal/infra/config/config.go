package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env            string
	HTTPAddr       string
	StorageMode    string
	MongoURI       string
	MongoDB        string
	ScyllaHosts    []string
	ScyllaKeyspace string
	KafkaBrokers   []string
	ChatTopic      string
	SessionTTL     time.Duration
	AssistantURL   string
	AssistantKey   string
	AssistantModel string
	S3Endpoint     string
	S3PublicURL    string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool
}

// Load parses configuration from the current environment. A .env file in the
// working directory is applied first without overriding already-set variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StorageMode:    strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        getEnv("MONGO_DB", "fleamarket"),
		ScyllaKeyspace: getEnv("SCYLLA_KEYSPACE", "fleamarket_chat"),
		ChatTopic:      getEnv("CHAT_TOPIC", "chat.messages"),
		AssistantURL:   getEnv("ASSISTANT_URL", ""),
		AssistantKey:   getEnv("ASSISTANT_API_KEY", ""),
		AssistantModel: getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
		S3Endpoint:     getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3PublicURL:    getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:       getEnv("S3_BUCKET", "fleamarket-photos"),
	}
	if hosts := getEnv("SCYLLA_HOSTS", ""); hosts != "" {
		cfg.ScyllaHosts = splitList(hosts)
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 720*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = sessionTTL

	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL
	if cfg.S3PublicURL == "" {
		cfg.S3PublicURL = cfg.S3Endpoint
	}

	switch cfg.StorageMode {
	case "memory":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
		if len(cfg.ScyllaHosts) == 0 {
			return Config{}, fmt.Errorf("SCYLLA_HOSTS is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE: %q", cfg.StorageMode)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
