package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers selectable with STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreFirebase = "firebase"
)

type Config struct {
	Host string
	Port string

	// StoreDriver is "memory" (default), "postgres" or "firebase".
	StoreDriver string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	// FirebaseDatabaseURL is the Realtime Database URL, e.g. https://<project>.firebaseio.com.
	FirebaseDatabaseURL string
	// FirebaseCredentialsFile is a service account JSON file. When empty, application default credentials are used.
	FirebaseCredentialsFile string
	// FirebaseRef is the collection node records are pushed under.
	FirebaseRef string
	// FirebaseReadRetries bounds retries of failed reads (default 3). Writes are never retried.
	FirebaseReadRetries int
	// FirebaseBreakerFailures consecutive failures open the circuit breaker (default 5).
	FirebaseBreakerFailures int
	// FirebaseBreakerOpen is how long the breaker stays open (default 30s).
	FirebaseBreakerOpen time.Duration

	// CORSAllowedOrigins is a list of origins allowed for CORS. "*" allows every origin.
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). Defaults to "*".
	CORSAllowedOrigins []string

	// MaxBodyBytes caps request bodies on write routes (default 1 MiB).
	MaxBodyBytes int64
	// WriteRatePerMinute is the per-IP limit on write requests (default 120).
	WriteRatePerMinute int

	// StatusSweep is the cron spec for the status sweeper. Empty disables it.
	StatusSweep string
	// Location is the time zone schedule dates and times are interpreted in.
	Location *time.Location

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
}

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func Load() Config {
	return Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "3333"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "irrigation"),
		DBUser: getEnv("DB_USER", "irrigation"),
		DBPass: getEnv("DB_PASS", "irrigation"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		FirebaseDatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseRef:             getEnv("FIREBASE_REF", "irrigation"),
		FirebaseReadRetries:     getEnvInt("FIREBASE_READ_RETRIES", 3),
		FirebaseBreakerFailures: getEnvInt("FIREBASE_BREAKER_FAILURES", 5),
		FirebaseBreakerOpen:     getEnvDuration("FIREBASE_BREAKER_OPEN", 30*time.Second),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		WriteRatePerMinute: getEnvInt("WRITE_RATE_PER_MIN", 120),

		StatusSweep: lookupEnv("STATUS_SWEEP", "@every 1m"),
		Location:    loadLocation(getEnv("TIMEZONE", "UTC")),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// loadLocation falls back to UTC for unknown zone names.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupEnv is like getEnv but an explicitly empty value is kept.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}
