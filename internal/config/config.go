package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv  string `mapstructure:"APP_ENV"`
	AppName string `mapstructure:"APP_NAME"`
	Port    string `mapstructure:"PORT"`

	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	// Redis 为空时使用进程内 LRU 缓存
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// RabbitMQ 为空时不启动消费者，也不发布事件
	RabbitURL string `mapstructure:"RABBITMQ_URL"`

	AIBaseURL        string `mapstructure:"AI_BASE_URL"`
	AIAPIKey         string `mapstructure:"AI_API_KEY"`
	AIChatModel      string `mapstructure:"AI_CHAT_MODEL"`
	AIEmbeddingModel string `mapstructure:"AI_EMBEDDING_MODEL"`

	QdrantHost        string  `mapstructure:"QDRANT_HOST"`
	QdrantPort        int     `mapstructure:"QDRANT_PORT"`
	QdrantCollection  string  `mapstructure:"QDRANT_COLLECTION"`
	QdrantAPIKey      string  `mapstructure:"QDRANT_API_KEY"`
	VectorSize        uint64  `mapstructure:"VECTOR_SIZE"`
	ClusterSimilarity float32 `mapstructure:"CLUSTER_SIMILARITY"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	JaegerEndpoint string `mapstructure:"JAEGER_ENDPOINT"`

	FeedDefaultLimit int           `mapstructure:"FEED_DEFAULT_LIMIT"`
	FeedMaxLimit     int           `mapstructure:"FEED_MAX_LIMIT"`
	FeedWindow       time.Duration `mapstructure:"FEED_WINDOW"`
	FeedTimeout      time.Duration `mapstructure:"FEED_TIMEOUT"`
	FeedCacheTTL     time.Duration `mapstructure:"FEED_CACHE_TTL"`

	ClusterWindow      time.Duration `mapstructure:"CLUSTER_WINDOW"`
	ClusterPreviewSize int           `mapstructure:"CLUSTER_PREVIEW_SIZE"`

	RankingQueueSize     int           `mapstructure:"RANKING_QUEUE_SIZE"`
	RankingBatchSize     int           `mapstructure:"RANKING_BATCH_SIZE"`
	RankingFlushInterval time.Duration `mapstructure:"RANKING_FLUSH_INTERVAL"`
}

// Load 读取 .env、配置文件和环境变量，环境变量优先
func Load() (*Config, error) {
	// .env 只是便利，不存在时直接用系统环境变量
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	configureViper(v)
	if err := readConfiguration(v); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func (c *Config) validate() error {
	if c.FeedMaxLimit <= 0 || c.FeedDefaultLimit <= 0 || c.FeedDefaultLimit > c.FeedMaxLimit {
		return fmt.Errorf("invalid feed limits: default=%d max=%d", c.FeedDefaultLimit, c.FeedMaxLimit)
	}
	if c.ClusterPreviewSize < 0 {
		return fmt.Errorf("invalid cluster preview size: %d", c.ClusterPreviewSize)
	}
	if c.RankingQueueSize <= 0 || c.RankingBatchSize <= 0 {
		return fmt.Errorf("invalid ranking queue settings: queue=%d batch=%d", c.RankingQueueSize, c.RankingBatchSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_NAME", "ideafeed")
	v.SetDefault("PORT", "8080")

	v.SetDefault("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=ideafeed port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RABBITMQ_URL", "")

	v.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_EMBEDDING_MODEL", "text-embedding-3-small")

	v.SetDefault("QDRANT_HOST", "localhost")
	v.SetDefault("QDRANT_PORT", 6334)
	v.SetDefault("QDRANT_COLLECTION", "notes")
	v.SetDefault("QDRANT_API_KEY", "")
	v.SetDefault("VECTOR_SIZE", 1536)
	v.SetDefault("CLUSTER_SIMILARITY", 0.82)

	v.SetDefault("JWT_SECRET", "secret_key_change_me")

	v.SetDefault("JAEGER_ENDPOINT", "")

	v.SetDefault("FEED_DEFAULT_LIMIT", 20)
	v.SetDefault("FEED_MAX_LIMIT", 100)
	v.SetDefault("FEED_WINDOW", "720h")
	v.SetDefault("FEED_TIMEOUT", "5s")
	v.SetDefault("FEED_CACHE_TTL", "30s")

	v.SetDefault("CLUSTER_WINDOW", "48h")
	v.SetDefault("CLUSTER_PREVIEW_SIZE", 3)

	v.SetDefault("RANKING_QUEUE_SIZE", 1000)
	v.SetDefault("RANKING_BATCH_SIZE", 50)
	v.SetDefault("RANKING_FLUSH_INTERVAL", "500ms")
}

func configureViper(v *viper.Viper) {
	v.SetConfigName("ideafeed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func readConfiguration(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("config file error: %w", err)
	}
	return nil
}
