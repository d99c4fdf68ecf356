package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Vector backends
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// Embedding providers
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"
)

// Chat providers. The mock provider answers every prompt with an empty
// suggestion and needs no credentials.
const (
	ChatProviderOpenAI = "openai"
	ChatProviderMock   = "mock"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Vector     VectorConfig     `json:"vector" yaml:"vector"`
	Qdrant     QdrantConfig     `json:"qdrant" yaml:"qdrant"`
	OpenAI     OpenAIConfig     `json:"openai" yaml:"openai"`
	Embeddings EmbeddingsConfig `json:"embeddings" yaml:"embeddings"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Suggestion SuggestionConfig `json:"suggestion" yaml:"suggestion"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           int      `json:"port" yaml:"port"`
	Host           string   `json:"host" yaml:"host"`
	ReadTimeout    int      `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout   int      `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	RequestTimeout int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// VectorConfig selects the similarity index backend
type VectorConfig struct {
	Backend string `json:"backend" yaml:"backend"`
}

// QdrantConfig represents Qdrant vector database configuration
type QdrantConfig struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	APIKey         string `json:"-" yaml:"api_key"` // Never serialize API key
	UseTLS         bool   `json:"use_tls" yaml:"use_tls"`
	Collection     string `json:"collection" yaml:"collection"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// OpenAIConfig represents OpenAI API configuration
type OpenAIConfig struct {
	ChatProvider   string  `json:"chat_provider" yaml:"chat_provider"`
	APIKey         string  `json:"-" yaml:"api_key"` // Never serialize API key
	BaseURL        string  `json:"base_url,omitempty" yaml:"base_url"`
	ChatModel      string  `json:"chat_model" yaml:"chat_model"`
	EmbeddingModel string  `json:"embedding_model" yaml:"embedding_model"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
	RequestTimeout int     `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	RateLimitRPM   int     `json:"rate_limit_rpm" yaml:"rate_limit_rpm"`
}

// EmbeddingsConfig controls how task text is turned into vectors
type EmbeddingsConfig struct {
	Provider        string `json:"provider" yaml:"provider"`
	Dimensions      int    `json:"dimensions" yaml:"dimensions"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// RedisConfig configures the embedding cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// DatabaseConfig points at the task store owned by the main application.
// It is only read from.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"-" yaml:"dsn"`
}

// SuggestionConfig tunes the suggestion pipeline
type SuggestionConfig struct {
	SimilarLimit        int     `json:"similar_limit" yaml:"similar_limit"`
	MaxExpectedDistance float64 `json:"max_expected_distance" yaml:"max_expected_distance"`
	StripMarkdown       bool    `json:"strip_markdown" yaml:"strip_markdown"`
}

// ResilienceConfig tunes retries and the circuit breaker around the vector
// store and the language model
type ResilienceConfig struct {
	RetryAttempts           int `json:"retry_attempts" yaml:"retry_attempts"`
	RetryInitialDelayMs     int `json:"retry_initial_delay_ms" yaml:"retry_initial_delay_ms"`
	BreakerFailureThreshold int `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerTimeoutSeconds   int `json:"breaker_timeout_seconds" yaml:"breaker_timeout_seconds"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			ReadTimeout:    30,
			WriteTimeout:   60,
			RequestTimeout: 60,
			AllowedOrigins: []string{"*"},
		},
		Vector: VectorConfig{
			Backend: BackendQdrant,
		},
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			UseTLS:         false,
			Collection:     "task_embeddings",
			TimeoutSeconds: 30,
		},
		OpenAI: OpenAIConfig{
			ChatProvider:   ChatProviderOpenAI,
			ChatModel:      "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      1024,
			Temperature:    0.7,
			RequestTimeout: 60,
			RateLimitRPM:   60,
		},
		Embeddings: EmbeddingsConfig{
			Provider:        EmbeddingProviderOpenAI,
			Dimensions:      1536,
			CacheTTLMinutes: 24 * 60,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Suggestion: SuggestionConfig{
			SimilarLimit:        5,
			MaxExpectedDistance: 1.0,
		},
		Resilience: ResilienceConfig{
			RetryAttempts:           3,
			RetryInitialDelayMs:     200,
			BreakerFailureThreshold: 5,
			BreakerTimeoutSeconds:   30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, .env and
// environment variables, in that order of precedence (last wins).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()

	if path := os.Getenv("TASKFLOW_CONFIG_FILE"); path != "" {
		if err := loadFromFile(config, path); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	loadFromEnv(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile overlays a YAML document onto config. Keys missing from the
// file keep their current values.
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadVectorConfig(config)
	loadOpenAIConfig(config)
	loadEmbeddingsConfig(config)
	loadRedisConfig(config)
	loadDatabaseConfig(config)
	loadSuggestionConfig(config)
	loadResilienceConfig(config)
	loadLoggingConfig(config)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(config *Config) {
	if port := os.Getenv("TASKFLOW_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TASKFLOW_HOST"); host != "" {
		config.Server.Host = host
	}

	// Server timeouts
	if readTimeout := os.Getenv("TASKFLOW_READ_TIMEOUT_SECONDS"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			config.Server.ReadTimeout = rt
		}
	}
	if writeTimeout := os.Getenv("TASKFLOW_WRITE_TIMEOUT_SECONDS"); writeTimeout != "" {
		if wt, err := strconv.Atoi(writeTimeout); err == nil {
			config.Server.WriteTimeout = wt
		}
	}
	if requestTimeout := os.Getenv("TASKFLOW_REQUEST_TIMEOUT_SECONDS"); requestTimeout != "" {
		if rt, err := strconv.Atoi(requestTimeout); err == nil {
			config.Server.RequestTimeout = rt
		}
	}
	if origins := os.Getenv("TASKFLOW_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}
}

// loadVectorConfig loads the backend choice and Qdrant settings
func loadVectorConfig(config *Config) {
	if backend := os.Getenv("TASKFLOW_VECTOR_BACKEND"); backend != "" {
		config.Vector.Backend = strings.ToLower(backend)
	}

	// Qdrant configuration - check both prefixed and non-prefixed env vars
	if host := os.Getenv("TASKFLOW_QDRANT_HOST"); host != "" {
		config.Qdrant.Host = host
	} else if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Qdrant.Host = host
	}

	if port := os.Getenv("TASKFLOW_QDRANT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Qdrant.Port = p
		}
	} else if port := os.Getenv("QDRANT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Qdrant.Port = p
		}
	}

	if apiKey := os.Getenv("TASKFLOW_QDRANT_API_KEY"); apiKey != "" {
		config.Qdrant.APIKey = apiKey
	} else if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.Qdrant.APIKey = apiKey
	}

	if useTLS := os.Getenv("TASKFLOW_QDRANT_USE_TLS"); useTLS != "" {
		if tls, err := strconv.ParseBool(useTLS); err == nil {
			config.Qdrant.UseTLS = tls
		}
	}

	if collection := os.Getenv("TASKFLOW_QDRANT_COLLECTION"); collection != "" {
		config.Qdrant.Collection = collection
	}

	if timeoutSeconds := os.Getenv("TASKFLOW_QDRANT_TIMEOUT_SECONDS"); timeoutSeconds != "" {
		if ts, err := strconv.Atoi(timeoutSeconds); err == nil {
			config.Qdrant.TimeoutSeconds = ts
		}
	}
}

// loadOpenAIConfig loads OpenAI configuration from environment
func loadOpenAIConfig(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
	if provider := os.Getenv("TASKFLOW_CHAT_PROVIDER"); provider != "" {
		config.OpenAI.ChatProvider = strings.ToLower(provider)
	}
	if model := os.Getenv("TASKFLOW_AI_MODEL"); model != "" {
		config.OpenAI.ChatModel = model
	}
	if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
		config.OpenAI.EmbeddingModel = model
	}
	if maxTokens := os.Getenv("TASKFLOW_OPENAI_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.OpenAI.MaxTokens = mt
		}
	}
	if temperature := os.Getenv("TASKFLOW_OPENAI_TEMPERATURE"); temperature != "" {
		if temp, err := strconv.ParseFloat(temperature, 64); err == nil {
			config.OpenAI.Temperature = temp
		}
	}
	if requestTimeout := os.Getenv("TASKFLOW_OPENAI_REQUEST_TIMEOUT_SECONDS"); requestTimeout != "" {
		if rt, err := strconv.Atoi(requestTimeout); err == nil {
			config.OpenAI.RequestTimeout = rt
		}
	}
	if rateLimitRPM := os.Getenv("TASKFLOW_OPENAI_RATE_LIMIT_RPM"); rateLimitRPM != "" {
		if rl, err := strconv.Atoi(rateLimitRPM); err == nil {
			config.OpenAI.RateLimitRPM = rl
		}
	}
}

func loadEmbeddingsConfig(config *Config) {
	if provider := os.Getenv("TASKFLOW_EMBEDDINGS_PROVIDER"); provider != "" {
		config.Embeddings.Provider = strings.ToLower(provider)
	}
	if dims := os.Getenv("TASKFLOW_EMBEDDINGS_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			config.Embeddings.Dimensions = d
		}
	}
	if ttl := os.Getenv("TASKFLOW_EMBEDDINGS_CACHE_TTL_MINUTES"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Embeddings.CacheTTLMinutes = t
		}
	}
}

func loadRedisConfig(config *Config) {
	if enabled := os.Getenv("TASKFLOW_REDIS_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Redis.Enabled = e
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}
}

func loadDatabaseConfig(config *Config) {
	if driver := os.Getenv("TASKFLOW_DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
	}
}

func loadSuggestionConfig(config *Config) {
	if limit := os.Getenv("TASKFLOW_SUGGEST_SIMILAR_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Suggestion.SimilarLimit = l
		}
	}
	if maxDist := os.Getenv("TASKFLOW_SUGGEST_MAX_EXPECTED_DISTANCE"); maxDist != "" {
		if md, err := strconv.ParseFloat(maxDist, 64); err == nil {
			config.Suggestion.MaxExpectedDistance = md
		}
	}
	if strip := os.Getenv("TASKFLOW_SUGGEST_STRIP_MARKDOWN"); strip != "" {
		if s, err := strconv.ParseBool(strip); err == nil {
			config.Suggestion.StripMarkdown = s
		}
	}
}

func loadResilienceConfig(config *Config) {
	if attempts := os.Getenv("TASKFLOW_RETRY_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Resilience.RetryAttempts = a
		}
	}
	if delay := os.Getenv("TASKFLOW_RETRY_INITIAL_DELAY_MS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			config.Resilience.RetryInitialDelayMs = d
		}
	}
	if threshold := os.Getenv("TASKFLOW_BREAKER_FAILURE_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			config.Resilience.BreakerFailureThreshold = t
		}
	}
	if timeout := os.Getenv("TASKFLOW_BREAKER_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Resilience.BreakerTimeoutSeconds = t
		}
	}
}

// loadLoggingConfig loads logging configuration from environment
func loadLoggingConfig(config *Config) {
	if level := os.Getenv("TASKFLOW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("TASKFLOW_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	switch c.Vector.Backend {
	case BackendQdrant:
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host cannot be empty")
		}
		if c.Qdrant.Port <= 0 {
			return fmt.Errorf("qdrant port must be greater than 0")
		}
		if c.Qdrant.Collection == "" {
			return fmt.Errorf("qdrant collection cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown vector backend: %s", c.Vector.Backend)
	}

	switch c.OpenAI.ChatProvider {
	case ChatProviderOpenAI, ChatProviderMock:
	default:
		return fmt.Errorf("unknown chat provider: %s", c.OpenAI.ChatProvider)
	}

	// Validate OpenAI config. Compatible local endpoints may run without a key.
	usesOpenAI := c.OpenAI.ChatProvider == ChatProviderOpenAI || c.Embeddings.Provider == EmbeddingProviderOpenAI
	if usesOpenAI && c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	if c.OpenAI.ChatModel == "" {
		return fmt.Errorf("OpenAI chat model cannot be empty")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("OpenAI temperature must be between 0 and 2")
	}

	switch c.Embeddings.Provider {
	case EmbeddingProviderOpenAI:
		if c.OpenAI.EmbeddingModel == "" {
			return fmt.Errorf("OpenAI embedding model cannot be empty")
		}
	case EmbeddingProviderHash:
	default:
		return fmt.Errorf("unknown embeddings provider: %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address cannot be empty when redis is enabled")
	}

	if c.Database.DSN != "" && c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Suggestion.SimilarLimit <= 0 {
		return fmt.Errorf("similar task limit must be positive")
	}
	if c.Suggestion.MaxExpectedDistance <= 0 {
		return fmt.Errorf("max expected distance must be positive")
	}

	if c.Resilience.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	return nil
}

// Address returns the listen address for the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
