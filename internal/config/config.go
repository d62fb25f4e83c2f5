package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	JWTExpirySeconds   int64
	CronSecret         string
	RabbitMQURL        string
	RabbitMQWorkerMode string
	CorsAllowedOrigins []string

	WSHeartbeatInterval  time.Duration
	WSOrderPollInterval  time.Duration
	ForecastHorizonDays  int
	ForecastHistoryDays  int
	AttendanceGraceMin   int
	OvertimeRateMultiple float64
	PriceRoundingStep    float64
	DefaultTargetMargin  float64

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8090"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpirySeconds:   getEnvInt64("JWT_EXPIRY", 3600),
		CronSecret:         getEnv("CRON_SECRET", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode: getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		WSHeartbeatInterval:  getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		WSOrderPollInterval:  getEnvDuration("WS_ORDER_POLL_INTERVAL", 5*time.Second),
		ForecastHorizonDays:  int(getEnvInt64("FORECAST_HORIZON_DAYS", 14)),
		ForecastHistoryDays:  int(getEnvInt64("FORECAST_HISTORY_DAYS", 60)),
		AttendanceGraceMin:   int(getEnvInt64("ATTENDANCE_GRACE_MINUTES", 10)),
		OvertimeRateMultiple: getEnvFloat64("OVERTIME_RATE_MULTIPLE", 1.5),
		PriceRoundingStep:    getEnvFloat64("PRICE_ROUNDING_STEP", 500),
		DefaultTargetMargin:  getEnvFloat64("DEFAULT_TARGET_MARGIN", 0.6),

		// Object store (Cloudflare R2 / S3-compatible) for report artifacts
		ObjectStoreEndpoint:        getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreRegion:          getEnv("OBJECT_STORE_REGION", "auto"),
		ObjectStoreAccessKeyID:     getEnv("OBJECT_STORE_ACCESS_KEY_ID", ""),
		ObjectStoreSecretAccessKey: getEnv("OBJECT_STORE_SECRET_ACCESS_KEY", ""),
		ObjectStoreBucket:          getEnv("OBJECT_STORE_BUCKET", ""),
		ObjectStorePublicBaseURL:   getEnv("OBJECT_STORE_PUBLIC_BASE_URL", ""),
		ObjectStoreStorageClass:    getEnv("OBJECT_STORE_STORAGE_CLASS", "STANDARD"),
	}

	if cfg.ForecastHorizonDays <= 0 {
		cfg.ForecastHorizonDays = 14
	}
	if cfg.ForecastHistoryDays < cfg.ForecastHorizonDays {
		cfg.ForecastHistoryDays = 60
	}
	if cfg.DefaultTargetMargin <= 0 || cfg.DefaultTargetMargin >= 0.95 {
		cfg.DefaultTargetMargin = 0.6
	}
	if cfg.OvertimeRateMultiple < 1 {
		cfg.OvertimeRateMultiple = 1.5
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
