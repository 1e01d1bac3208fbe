package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Inference InferenceConfig `mapstructure:"inference"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Keywords  KeywordsConfig  `mapstructure:"keywords"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// InferenceConfig points at the model server hosting the fine-tuned models.
type InferenceConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	InterestModel  string        `mapstructure:"interest_model"`
	TopicModel     string        `mapstructure:"topic_model"`
	IntimacyModel  string        `mapstructure:"intimacy_model"`
	NounAnalyzer   string        `mapstructure:"noun_analyzer"`
	BatchSize      int           `mapstructure:"batch_size"`
	InterestMaxLen int           `mapstructure:"interest_max_length"`
	TopicMaxLen    int           `mapstructure:"topic_max_length"`
	IntimacyMaxLen int           `mapstructure:"intimacy_max_length"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch_size"`
}

type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig selects where product embeddings live: "file" or "postgres".
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	BuildBatch int    `mapstructure:"build_batch"`
}

type KeywordsConfig struct {
	Stopwords string `mapstructure:"stopwords"`
}

type RecommendConfig struct {
	TopK int `mapstructure:"top_k"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("inference.url", "http://localhost:8501")
	v.SetDefault("inference.timeout", 30*time.Second)
	v.SetDefault("inference.interest_model", "interest")
	v.SetDefault("inference.topic_model", "topic")
	v.SetDefault("inference.intimacy_model", "topic")
	v.SetDefault("inference.noun_analyzer", "okt")
	v.SetDefault("inference.batch_size", 32)
	v.SetDefault("inference.interest_max_length", 128)
	v.SetDefault("inference.topic_max_length", 512)
	v.SetDefault("inference.intimacy_max_length", 128)

	v.SetDefault("embedding.model", "jhgan/ko-sroberta-multitask")
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("catalog.dir", "category_files")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "cached_embeddings")
	v.SetDefault("cache.build_batch", 256)
	v.SetDefault("keywords.stopwords", "stopwords-ko.txt")
	v.SetDefault("recommend.top_k", 5)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads path, if it exists, on top of the defaults and applies
// the environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support, e.g. INFERENCE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Recommend.TopK < 1 {
		return fmt.Errorf("recommend.top_k must be at least 1, got %d", c.Recommend.TopK)
	}
	switch c.Cache.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("cache.backend must be file or postgres, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "postgres" && c.Database.UseInMemory {
		return errors.New("cache.backend postgres needs a database, but database.use_in_memory is set")
	}
	return nil
}
