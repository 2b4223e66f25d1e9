package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL      string
	SslCertPath      string
	DBMinConns       int
	DBMaxConns       int
	DBAcquireTimeout time.Duration

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string

	AIProvider     string
	AIAPIKey       string
	AIBaseURL      string
	EmbedModel     string
	EmbedDim       int
	EmbedBatchSize int
	EmbedRPS       float64
	EmbedCacheDir  string
	GenModel       string
	GenTemperature float64
	GenMaxTokens   int

	Chunker        string
	ChunkSize      int
	ChunkOverlap   int
	MaxUploadBytes int64
	IngestWorkers  int
	Similarity     string

	Port string
}

// loader resolves a key from the environment first, then from the optional
// YAML file, then falls back to the default.
type loader struct {
	file map[string]string
}

// LoadConfig loads .env, the YAML file named by CONTEXTA_CONFIG (if any) and
// the process environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	l := &loader{}
	if path := os.Getenv("CONTEXTA_CONFIG"); path != "" {
		if err := l.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		DatabaseURL:      l.getEnv("DATABASE_URL", ""),
		SslCertPath:      l.getEnv("SSL_CERT_PATH", ""),
		DBMinConns:       l.getEnvInt("DB_MIN_CONNS", 1),
		DBMaxConns:       l.getEnvInt("DB_MAX_CONNS", 20),
		DBAcquireTimeout: l.getEnvDuration("DB_ACQUIRE_TIMEOUT", 10*time.Second),

		AwsAccessKey: l.getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: l.getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    l.getEnv("AWS_REGION", "us-east-2"),
		BucketName:   l.getEnv("BUCKET_NAME", "contexta-docs"),
		S3Endpoint:   l.getEnv("S3_ENDPOINT", ""),

		AIProvider:     strings.ToLower(l.getEnv("AI_PROVIDER", "gemini")),
		AIAPIKey:       l.getEnv("AI_API_KEY", l.getEnv("GEMINI_API_KEY", "")),
		AIBaseURL:      l.getEnv("AI_BASE_URL", ""),
		EmbedModel:     l.getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:       l.getEnvInt("EMBED_DIM", 768),
		EmbedBatchSize: l.getEnvInt("EMBED_BATCH_SIZE", 100),
		EmbedRPS:       l.getEnvFloat("EMBED_RPS", 0),
		EmbedCacheDir:  l.getEnv("EMBED_CACHE_DIR", ""),
		GenModel:       l.getEnv("GEN_MODEL", "gemini-1.5-flash"),
		GenTemperature: l.getEnvFloat("GEN_TEMPERATURE", 0.2),
		GenMaxTokens:   l.getEnvInt("GEN_MAX_TOKENS", 1024),

		Chunker:        strings.ToLower(l.getEnv("CHUNKER", "recursive")),
		ChunkSize:      l.getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   l.getEnvInt("CHUNK_OVERLAP", 200),
		MaxUploadBytes: l.getEnvInt64("MAX_UPLOAD_BYTES", 100<<20),
		IngestWorkers:  l.getEnvInt("INGEST_WORKERS", 4),
		Similarity:     strings.ToLower(l.getEnv("SIMILARITY", "gonum")),

		Port: l.getEnv("PORT", "8080"),
	}

	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("AI_API_KEY (or GEMINI_API_KEY) not set"))
	}
	switch c.AIProvider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER %q not supported", c.AIProvider))
	}
	switch c.Chunker {
	case "recursive", "window":
	default:
		errs = append(errs, fmt.Errorf("CHUNKER %q not supported", c.Chunker))
	}
	switch c.Similarity {
	case "gonum", "manual":
	default:
		errs = append(errs, fmt.Errorf("SIMILARITY %q not supported", c.Similarity))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS=%d / DB_MAX_CONNS=%d out of range", c.DBMinConns, c.DBMaxConns))
	}
	return errors.Join(errs...)
}

func (l *loader) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	l.file = make(map[string]string, len(values))
	for k, v := range values {
		l.file[strings.ToUpper(k)] = v
	}
	return nil
}

// Helper to read environment variables with a default fallback
func (l *loader) getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := l.file[key]; exists {
		return value
	}
	return fallback
}

func (l *loader) getEnvInt(key string, def int) int {
	v := l.getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func (l *loader) getEnvInt64(key string, def int64) int64 {
	v := l.getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func (l *loader) getEnvFloat(key string, def float64) float64 {
	v := l.getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config value is not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func (l *loader) getEnvDuration(key string, def time.Duration) time.Duration {
	v := l.getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
