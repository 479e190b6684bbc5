package config

import (
	"os"
	"strconv"
)

type AppConfig struct {
	HTTPAddr    string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr string
	RedisPass string

	JWTSecret string

	// Card checkout gateway (inline payments + webhook).
	FlutterwavePublicKey  string
	FlutterwaveSecretKey  string
	FlutterwaveSecretHash string
	FlutterwaveBaseURL    string

	// Bank transfer gateway (withdrawal settlement).
	SeerbitPublicKey string
	SeerbitSecretKey string
	SeerbitBaseURL   string

	// Interval in minutes for the background distribution runner; 0 disables.
	DistributionIntervalMin int
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		Environment: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "referral"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		FlutterwavePublicKey:  getEnv("FLUTTERWAVE_PUBLIC_KEY", ""),
		FlutterwaveSecretKey:  getEnv("FLUTTERWAVE_SECRET_KEY", ""),
		FlutterwaveSecretHash: getEnv("FLUTTERWAVE_SECRET_HASH", ""),
		FlutterwaveBaseURL:    getEnv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com"),

		SeerbitPublicKey: getEnv("SEERBIT_PUBLIC_KEY", ""),
		SeerbitSecretKey: getEnv("SEERBIT_SECRET_KEY", ""),
		SeerbitBaseURL:   getEnv("SEERBIT_BASE_URL", "https://seerbitapi.com"),

		DistributionIntervalMin: getEnvInt("DISTRIBUTION_INTERVAL_MIN", 0),
	}
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
