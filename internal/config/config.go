package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Pipeline PipelineConfig
	Ads      AdsConfig
	Delivery DeliveryConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// PipelineConfig holds transcode pipeline configuration
type PipelineConfig struct {
	FFmpegPath       string
	FFprobePath      string
	ContentRoot      string
	ScratchDir       string
	TranscodeTimeout time.Duration
}

// AdsConfig holds the advertisement break schedule. Loaded once at startup
// and immutable for the lifetime of the process.
type AdsConfig struct {
	MidContent bool
	Delay      time.Duration
	Duration   time.Duration
	SkipAfter  time.Duration
	AssetPath  string
}

// DeliveryConfig holds chunked delivery configuration
type DeliveryConfig struct {
	ChunkSize   int64
	MaxSessions int
	IdleTimeout time.Duration
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate rejects configurations the pipeline cannot start with. A bad
// content root or chunk size must fail here, not per-request.
func (c *Config) validate() error {
	if c.Pipeline.ContentRoot == "" {
		return fmt.Errorf("pipeline.contentRoot must be set")
	}
	if c.Pipeline.ScratchDir == "" {
		return fmt.Errorf("pipeline.scratchDir must be set")
	}
	if c.Delivery.ChunkSize <= 0 {
		return fmt.Errorf("delivery.chunkSize must be positive, got %d", c.Delivery.ChunkSize)
	}
	if c.Delivery.MaxSessions <= 0 {
		return fmt.Errorf("delivery.maxSessions must be positive, got %d", c.Delivery.MaxSessions)
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "seatback")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "originals")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Pipeline defaults
	viper.SetDefault("pipeline.ffmpegPath", "ffmpeg")
	viper.SetDefault("pipeline.ffprobePath", "ffprobe")
	viper.SetDefault("pipeline.contentRoot", "/var/lib/seatback/content")
	viper.SetDefault("pipeline.scratchDir", "/var/lib/seatback/scratch")
	viper.SetDefault("pipeline.transcodeTimeout", "2h")

	// Ads defaults
	viper.SetDefault("ads.midContent", true)
	viper.SetDefault("ads.delay", "5m")
	viper.SetDefault("ads.duration", "30s")
	viper.SetDefault("ads.skipAfter", "10s")
	viper.SetDefault("ads.assetPath", "ads/house.mp4")

	// Delivery defaults
	viper.SetDefault("delivery.chunkSize", 1024*1024) // 1MB
	viper.SetDefault("delivery.maxSessions", 200)
	viper.SetDefault("delivery.idleTimeout", "5m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9100)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "seatback")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
}
