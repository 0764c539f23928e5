package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	MySQLDSN     string
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string
	Environment  string // "production" enforces webhook signatures

	PaystackBaseURL string
	PaystackSecret  string
	CallbackURL     string
	GatewayTimeout  time.Duration

	MySQLMaxOpenConns int
	MySQLMaxIdleConns int
}

// Load reads configuration from the environment. A .env file is honored
// when present so local runs don't need exported variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:     getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/marketplace?parseTime=true"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
		ServiceName:  getenv("SERVICE_NAME", "marketplace-api"),
		Environment:  getenv("APP_ENV", "development"),

		PaystackBaseURL: getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackSecret:  getenv("PAYSTACK_SECRET_KEY", ""),
		CallbackURL:     getenv("PAYMENT_CALLBACK_URL", "http://localhost:8080/api/payments/callback"),
		GatewayTimeout:  getenvDuration("GATEWAY_TIMEOUT", 15*time.Second),

		MySQLMaxOpenConns: getenvInt("MYSQL_MAX_OPEN_CONNS", 50),
		MySQLMaxIdleConns: getenvInt("MYSQL_MAX_IDLE_CONNS", 25),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
