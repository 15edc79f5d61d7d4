package config

import (
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "entrypass/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	LogLevel        string
	DestinationsDir string
	RequestTimeout  time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	Profile  ProfileConfig
	Submit   SubmitConfig
	Audit    AuditConfig
	Photos   PhotoConfig
}

// DatabaseConfig enables the PostgreSQL backends when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// EncryptionKey is a 32-byte key sealing entity payloads at rest. Empty
	// stores payloads as plain JSON.
	EncryptionKey []byte
}

// RedisConfig enables the distributed submission lock when URL is set.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProfileConfig tunes progressive saves.
type ProfileConfig struct {
	SaveDebounce   time.Duration
	StorageRetries int
	StorageBackoff time.Duration
}

// SubmitConfig tunes the arrival-card pipeline.
type SubmitConfig struct {
	RemoteBaseURL  string
	RemoteTimeout  time.Duration
	MaxRetries     int
	Backoff        time.Duration
	LockTTL        time.Duration
	BreakerFailure int
	BreakerSuccess int
}

// AuditConfig enables the Kafka audit sink when Brokers is non-empty.
type AuditConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// PhotoConfig enables presigned uploads when Bucket is set.
type PhotoConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	PresignTTL   time.Duration
	UsePathStyle bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            envString("ENTRYPASS_ADDR", ":8080"),
		JWTSigningKey:   jwtSigningKey,
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		DestinationsDir: os.Getenv("DESTINATIONS_DIR"),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			EncryptionKey:   envKey("STORAGE_ENCRYPTION_KEY"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			KeyPrefix:    envString("REDIS_KEY_PREFIX", "entrypass"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Profile: ProfileConfig{
			SaveDebounce:   envDuration("SAVE_DEBOUNCE", 400*time.Millisecond),
			StorageRetries: envInt("STORAGE_RETRIES", 3),
			StorageBackoff: envDuration("STORAGE_BACKOFF", 50*time.Millisecond),
		},
		Submit: SubmitConfig{
			RemoteBaseURL:  envString("REMOTE_BASE_URL", "http://localhost:9090"),
			RemoteTimeout:  envDuration("REMOTE_TIMEOUT", 15*time.Second),
			MaxRetries:     envInt("SUBMIT_MAX_RETRIES", 2),
			Backoff:        envDuration("SUBMIT_BACKOFF", 500*time.Millisecond),
			LockTTL:        envDuration("SUBMIT_LOCK_TTL", 2*time.Minute),
			BreakerFailure: envInt("SUBMIT_BREAKER_FAILURES", 5),
			BreakerSuccess: envInt("SUBMIT_BREAKER_SUCCESSES", 3),
		},
		Audit: AuditConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("AUDIT_TOPIC", "entrypass.audit"),
			Buffer:  envInt("AUDIT_BUFFER", 256),
		},
		Photos: PhotoConfig{
			Bucket:       os.Getenv("S3_BUCKET"),
			Region:       envString("S3_REGION", "us-east-1"),
			Endpoint:     os.Getenv("S3_ENDPOINT"),
			AccessKey:    os.Getenv("S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("S3_SECRET_KEY"),
			PresignTTL:   envDuration("S3_PRESIGN_TTL", 15*time.Minute),
			UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",
		},
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(raw, ","))
}

// envKey reads a base64 key. Anything that does not decode to 32 bytes
// disables sealing.
func envKey(key string) []byte {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return nil
	}
	return decoded
}
