package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Debug bool
	Port  int

	StoreBackend string // redis, postgres or memory
	RedisAddr    string
	RedisDB      int
	DBString     string

	AuthToken string // required for triggering checks over HTTP

	PrometheusURL      string
	PrometheusUser     string
	PrometheusPassword string
	PrometheusOrg      string

	DiscordWebhook string

	ProfilePath   string // empty means the embedded default profile
	BaseURL       string // overrides the profile base url
	Categories    []Category
	CheckInterval time.Duration

	Headless      bool
	ScreenshotDir string
}

func NewConfig() *Config {
	return &Config{
		Debug: getBoolEnvDefault("DEBUG", false),
		Port:  getIntEnvDefault("PORT", 8080),

		StoreBackend: getStringEnvDefault("STORE_BACKEND", "redis"),
		RedisAddr:    getStringEnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getIntEnvDefault("REDIS_DB", 0),
		DBString:     getStringEnvDefault("DB_STRING", "host=localhost port=5432 user=postgres password=admin dbname=flowers sslmode=disable"),

		AuthToken: getStringEnvDefault("AUTH_TOKEN", "test"),

		PrometheusURL:      getStringEnvDefault("PROMETHEUS_URL", "http://localhost:9090"),
		PrometheusUser:     getStringEnvDefault("PROMETHEUS_USER", "test"),
		PrometheusPassword: getStringEnvDefault("PROMETHEUS_PASSWORD", "test"),
		PrometheusOrg:      getStringEnvDefault("PROMETHEUS_ORG", "test"),

		DiscordWebhook: getStringEnvDefault("DISCORD_WEBHOOK", ""),

		ProfilePath:   getStringEnvDefault("PROFILE_PATH", ""),
		BaseURL:       getStringEnvDefault("BASE_URL", ""),
		Categories:    parseCategories(getStringEnvDefault("CATEGORIES", "")),
		CheckInterval: getDurationEnvDefault("CHECK_INTERVAL", 30*time.Minute),

		Headless:      getBoolEnvDefault("HEADLESS", true),
		ScreenshotDir: getStringEnvDefault("SCREENSHOT_DIR", "./screenshots"),
	}
}

// parseCategories parses "Amor:/product-category/amor/,Cumpleaños:/product-category/cumpleanos/"
// invalid items are skipped
func parseCategories(s string) []Category {
	var categories []Category
	for _, item := range strings.Split(s, ",") {
		name, path, found := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !found || name == "" || path == "" {
			continue
		}

		categories = append(categories, Category{Name: name, Path: path})
	}

	return categories
}

func getBoolEnvDefault(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getStringEnvDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getIntEnvDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getDurationEnvDefault(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}
