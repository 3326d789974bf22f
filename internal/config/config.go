package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/streamforge/comment-service/internal/comment"
)

type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Persist  PersistConfig

	// InstanceID tags distributed-channel envelopes so an instance can
	// ignore its own mirrored publishes.
	InstanceID string
}

type ServerConfig struct {
	HTTPPort string
}

type DynamoDBConfig struct {
	Region          string
	CommentTable    string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	MaxBacklog int
	TTL        time.Duration
}

type QueueConfig struct {
	Stream           string
	DeadLetterStream string
	Group            string
	ConsumerPrefix   string
	Shards           int
	BatchSize        int
	Block            time.Duration
}

type PersistConfig struct {
	Mode       comment.PersistMode
	SampleRate float64
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: getEnv("HTTP_PORT", ":8081"),
		},
		DynamoDB: DynamoDBConfig{
			Region:          getEnv("AWS_REGION", "us-west-2"),
			CommentTable:    getEnv("DYNAMODB_COMMENT_TABLE", "comments"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			MaxBacklog: getEnvInt("CACHE_MAX_BACKLOG", 100),
			TTL:        getEnvDuration("CACHE_TTL", 30*time.Minute),
		},
		Queue: QueueConfig{
			Stream:           getEnv("QUEUE_STREAM", "comments:persist"),
			DeadLetterStream: getEnv("QUEUE_DEAD_LETTER_STREAM", "comments:deadletter"),
			Group:            getEnv("QUEUE_GROUP", "persisters"),
			ConsumerPrefix:   getEnv("QUEUE_CONSUMER_PREFIX", "persister"),
			Shards:           getEnvInt("QUEUE_SHARDS", 4),
			BatchSize:        getEnvInt("QUEUE_BATCH_SIZE", 50),
			Block:            getEnvDuration("QUEUE_BLOCK", 5*time.Second),
		},
		Persist: PersistConfig{
			Mode:       comment.PersistMode(getEnv("PERSIST_MODE", string(comment.PersistAll))),
			SampleRate: getEnvFloat("PERSIST_SAMPLE_RATE", 1.0),
		},
		InstanceID: getEnv("INSTANCE_ID", uuid.New().String()),
	}

	// Shard count is a modulus; zero or negative would break enqueue.
	if cfg.Queue.Shards < 1 {
		cfg.Queue.Shards = 1
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
