package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Google collaborators
	GoogleCredentialsFile string
	CalendarID            string
	SpreadsheetID         string

	// Per-conversation state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Optional turn audit log
	DatabaseURL string

	// Shop catalog. The JSON payloads override the built-in defaults the
	// same way services and opening hours are configured on the hosted shop.
	Timezone           string
	ServicesJSON       string
	BandsJSON          string
	ClosedWeekdaysJSON string
	GranularityMinutes int
	LeadTimeMinutes    int
	HorizonDays        int

	// External-call policy
	CalendarTimeout       time.Duration
	CalendarRetryAttempts int
	CalendarRetryBase     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "service_account.json"),
		CalendarID:            getEnv("CALENDAR_ID", ""),
		SpreadsheetID:         getEnv("SPREADSHEET_ID", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Timezone:           getEnv("SHOP_TIMEZONE", "Europe/Rome"),
		ServicesJSON:       getEnv("SHOP_SERVICES_JSON", ""),
		BandsJSON:          getEnv("SHOP_BANDS_JSON", ""),
		ClosedWeekdaysJSON: getEnv("SHOP_CLOSED_WEEKDAYS_JSON", ""),
		GranularityMinutes: getEnvAsInt("SLOT_GRANULARITY_MINUTES", 15),
		LeadTimeMinutes:    getEnvAsInt("BOOKING_LEAD_TIME_MINUTES", 15),
		HorizonDays:        getEnvAsInt("BOOKING_HORIZON_DAYS", 30),

		CalendarTimeout:       getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),
		CalendarRetryAttempts: getEnvAsInt("CALENDAR_RETRY_ATTEMPTS", 3),
		CalendarRetryBase:     getEnvAsDuration("CALENDAR_RETRY_BASE_DELAY", 250*time.Millisecond),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
