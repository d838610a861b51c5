package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	JWT struct {
		SecretKey string
	}
	CORS struct {
		AllowDomains string
	}
	MintService struct {
		URL string
	}
	PrivateKey string

	Worker struct {
		BatchSize      int           // max jobs fetched per poll
		MaxRetries     int           // failed attempts before a job is terminally failed
		RetryDelay     time.Duration // how long a requeued job waits before it is eligible again
		PollInterval   time.Duration // sleep between run loop iterations
		Concurrency    int           // max simultaneously in-flight mint submissions
		EmptyPollLimit int           // consecutive empty polls before the queue counts as drained
	}

	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}

	Environment struct {
		Mode string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	if config.Redis.RedisHost == "" {
		config.Redis.RedisHost = "localhost"
	}
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	config.MintService.URL = os.Getenv("MINT_SERVICE_URL")
	if config.MintService.URL == "" {
		config.MintService.URL = "http://localhost:8081"
	}
	config.PrivateKey = os.Getenv("PRIVATE_KEY")

	// Worker tuning
	config.Worker.BatchSize = intFromEnv("BATCH_SIZE", 100)
	config.Worker.MaxRetries = intFromEnv("MAX_RETRIES", 3)
	// RETRY_DELAY=0 is a valid choice: requeued jobs become eligible
	// again on the very next poll.
	config.Worker.RetryDelay = time.Duration(nonNegativeIntFromEnv("RETRY_DELAY", 5000)) * time.Millisecond
	config.Worker.PollInterval = time.Duration(intFromEnv("POLL_INTERVAL", 10000)) * time.Millisecond
	config.Worker.Concurrency = intFromEnv("MINT_CONCURRENCY", 10)
	config.Worker.EmptyPollLimit = intFromEnv("EMPTY_POLL_LIMIT", 3)

	// Grafana/OpenTelemetry
	otlpEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// The OTLP clients expect host:port without a protocol prefix
	otlpEndpoint = strings.TrimPrefix(otlpEndpoint, "https://")
	otlpEndpoint = strings.TrimPrefix(otlpEndpoint, "http://")
	config.Grafana.OTLPEndpoint = otlpEndpoint
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "card-mint-worker"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	return &config
}

func intFromEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// nonNegativeIntFromEnv accepts zero, unlike intFromEnv.
func nonNegativeIntFromEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
