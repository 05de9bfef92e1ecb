package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	Env         string
	FrontendURL string

	DBDriver    string // "pgx" or "postgres" (lib/pq)
	DatabaseURL string

	JWTSecret string
	JWTExpiry time.Duration

	Location *time.Location

	FirebaseDatabaseURL string
	FirebaseCredentials []byte // decoded service account JSON
	FirebaseProjectID   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RealtimeTTL   time.Duration

	NATSURL string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	GPSIngestKey string

	SweepInterval          time.Duration
	GPSRetention           time.Duration
	RetentionInterval      time.Duration
	SimulationStepInterval time.Duration
	AverageSpeedKmh        float64

	LogFile        string
	LogLevel       logrus.Level
	MetricsEnabled bool
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("APP_ENV", "development"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "pgx")),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		NATSURL:      os.Getenv("NATS_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    getEnv("MQTT_TOPIC", "ebus/gps/+"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "ebus-manager"),
		GPSIngestKey: os.Getenv("GPS_INGEST_KEY"),
		LogFile:      getEnv("LOG_FILE", "./logs/app.log"),

		FirebaseDatabaseURL: os.Getenv("FIREBASE_DATABASE_URL"),
		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.DBDriver != "pgx" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q, want pgx or postgres", cfg.DBDriver)
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "password"),
			getEnv("DB_NAME", "ebus"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	if cfg.DatabaseURL, err = utcDSN(dsn); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "supersecret"
	}

	if cfg.JWTExpiry, err = durationEnv("JWT_EXPIRY", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RealtimeTTL, err = durationEnv("REALTIME_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SHIFT_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GPSRetention, err = durationEnv("GPS_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RetentionInterval, err = durationEnv("GPS_RETENTION_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SimulationStepInterval, err = durationEnv("SIMULATION_STEP_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	cfg.AverageSpeedKmh = 30
	if v := os.Getenv("AVERAGE_SPEED_KMH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid AVERAGE_SPEED_KMH: %q", v)
		}
		cfg.AverageSpeedKmh = f
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB: %q", v)
		}
		cfg.RedisDB = n
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.MetricsEnabled, err = strconv.ParseBool(getEnv("METRICS_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}

	if raw := os.Getenv("FIREBASE_CREDENTIALS"); raw != "" {
		creds, err := decodeCredentials(raw)
		if err != nil {
			return nil, err
		}
		cfg.FirebaseCredentials = creds
	}

	return cfg, nil
}

// FirebaseEnabled reports whether realtime DB and push credentials are configured.
func (c *Config) FirebaseEnabled() bool {
	return len(c.FirebaseCredentials) > 0
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return defaultValue
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// decodeCredentials accepts base64 encoded service account JSON, raw JSON, or a file path.
func decodeCredentials(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	if _, err := os.Stat(trimmed); err == nil {
		return os.ReadFile(trimmed)
	}
	decoded, err := base64Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid FIREBASE_CREDENTIALS: %w", err)
	}
	return decoded, nil
}

// utcDSN pins the session time zone to UTC. Dates are written as UTC midnight,
// so date comparisons only line up in a UTC session.
func utcDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		for k := range q {
			if strings.EqualFold(k, "timezone") {
				q.Del(k)
			}
		}
		q.Set("timezone", "UTC")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	var kept []string
	for _, kv := range strings.Fields(dsn) {
		if k, _, _ := strings.Cut(kv, "="); strings.EqualFold(k, "timezone") {
			continue
		}
		kept = append(kept, kv)
	}
	return strings.Join(append(kept, "TimeZone=UTC"), " "), nil
}
