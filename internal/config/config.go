package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Token lifetimes accept Go durations ("15m",
// "1h") as well as a day suffix ("10d").
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	APIPrefix  string // versioned route prefix, e.g. /api/v1
	LogLevel   string // debug, info, warn or error
	LogDir     string // directory of the moderation audit log
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	BcryptCost int    // bcrypt cost for password hashing

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration
	CookieSecure       bool // Secure attribute of the session cookies

	AdminCacheTTL time.Duration // staleness bound of the cached admin id set
	RabbitMQURL   string        // empty disables moderation events
	S3            S3Config
}

// S3Config configures the object storage used for avatars and tweet images.
// Endpoint is set for MinIO and other S3-compatible servers.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Bucket          string
	UseSSL          bool
}

// Enabled reports whether enough is configured to talk to a bucket.
func (c S3Config) Enabled() bool { return c.Bucket != "" && c.Region != "" }

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		Env:        getenv("APP_ENV", "dev"),
		Port:       getenv("APP_PORT", "8080"),
		APIPrefix:  "/" + strings.Trim(getenv("API_PREFIX", "/api/v1"), "/"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogDir:     getenv("LOG_DIR", "logs"),
		DBUser:     must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"), // empty allowed
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		BcryptCost: envInt("BCRYPT_COST", 10),

		AccessTokenSecret:  must("ACCESS_TOKEN_SECRET"),
		AccessTokenTTL:     mustTTL("ACCESS_TOKEN_EXPIRY"),
		RefreshTokenSecret: must("REFRESH_TOKEN_SECRET"),
		RefreshTokenTTL:    mustTTL("REFRESH_TOKEN_EXPIRY"),
		CookieSecure:       envBool("COOKIE_SECURE", true),

		AdminCacheTTL: envDur("ADMIN_CACHE_TTL", 5*time.Minute),
		RabbitMQURL:   firstEnv("RABBITMQ_URL", "AMQP_URL"),
		S3: S3Config{
			Region:          os.Getenv("AWS_REGION"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("AWS_ENDPOINT"),
			Bucket:          os.Getenv("S3_BUCKET_NAME"),
			UseSSL:          envBool("S3_USE_SSL", true),
		},
	}
}

// ParseTTL parses token lifetimes such as "15m", "1h" or "10d".  Plain
// integers are seconds.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustTTL is like must() but parses the value with ParseTTL.  A non-positive
// lifetime is rejected as well.
func mustTTL(key string) time.Duration {
	s := must(key)
	d, err := ParseTTL(s)
	if err != nil || d <= 0 {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
