package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinPollInterval is the smallest accepted poll cadence. Interval commands
// below this are rejected at the hub boundary.
const MinPollInterval = time.Second

// Installation describes one monitored unit, fixed for the process lifetime.
type Installation struct {
	// Card identifier used on the wire and by the operator console
	CardID int

	// Installation name used as the store key (e.g. KGU1)
	Name string

	// Source endpoint the live reading is fetched from
	SourceURL string

	// Optional pattern extracting the reading from the source document.
	// Empty means the whole response body is the reading.
	SourcePattern string

	// Static fallback threshold in kW, used until a dynamic value is seen
	FallbackThreshold float64
}

// Config holds runtime configuration for the dispatcher.
type Config struct {
	HTTPAddr string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka brokers for event archival; empty disables archival
	KafkaBrokers []string
	KafkaTopic   string

	PollInterval  time.Duration
	Deadband      float64
	SourceTimeout time.Duration

	// Optional bearer token protecting the day data-entry API
	APIToken string

	Installations []Installation
}

// Load reads configuration from the environment. Installations are declared
// with numbered variables starting at 1: SOURCE_URL_1, INSTALLATION_1,
// THRESHOLD_1, SOURCE_PATTERN_1 and so on. At least one installation is
// required; a partially declared installation aborts startup listing what is
// missing.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "dispatcher.events"),
		PollInterval:  time.Duration(getEnvInt("POLL_INTERVAL", 15)) * time.Second,
		Deadband:      getEnvFloat("DEADBAND", 100),
		SourceTimeout: time.Duration(getEnvInt("SOURCE_TIMEOUT", 15)) * time.Second,
		APIToken:      getEnv("API_TOKEN", ""),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	installations, err := loadInstallations()
	if err != nil {
		return nil, err
	}
	cfg.Installations = installations

	if cfg.PollInterval < MinPollInterval {
		return nil, fmt.Errorf("POLL_INTERVAL below minimum of %s", MinPollInterval)
	}

	return cfg, nil
}

// loadInstallations reads numbered installation variables until the first
// index with no SOURCE_URL.
func loadInstallations() ([]Installation, error) {
	var installations []Installation
	var missing []string

	for i := 1; ; i++ {
		url := os.Getenv(fmt.Sprintf("SOURCE_URL_%d", i))
		if url == "" {
			break
		}

		inst := Installation{
			CardID:        i,
			Name:          getEnv(fmt.Sprintf("INSTALLATION_%d", i), fmt.Sprintf("KGU%d", i)),
			SourceURL:     url,
			SourcePattern: os.Getenv(fmt.Sprintf("SOURCE_PATTERN_%d", i)),
		}

		thrKey := fmt.Sprintf("THRESHOLD_%d", i)
		thr, err := strconv.ParseFloat(getEnv(thrKey, "0"), 64)
		if err != nil {
			missing = append(missing, thrKey)
		}
		inst.FallbackThreshold = thr

		installations = append(installations, inst)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %s", strings.Join(missing, ", "))
	}
	if len(installations) == 0 {
		return nil, fmt.Errorf("no installations configured: SOURCE_URL_1 is required")
	}

	return installations, nil
}

// Installation returns the installation with the given card ID.
func (c *Config) Installation(cardID int) (Installation, bool) {
	for _, inst := range c.Installations {
		if inst.CardID == cardID {
			return inst, true
		}
	}
	return Installation{}, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
