package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants
const (
	testAPIKey = "test-key"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	// Vector defaults
	assert.Equal(t, BackendQdrant, cfg.Vector.Backend)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "task_embeddings", cfg.Qdrant.Collection)

	// OpenAI defaults
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 0.7, cfg.OpenAI.Temperature)
	assert.Equal(t, 60, cfg.OpenAI.RateLimitRPM)

	// Embeddings defaults
	assert.Equal(t, EmbeddingProviderOpenAI, cfg.Embeddings.Provider)
	assert.Equal(t, 1536, cfg.Embeddings.Dimensions)
	assert.False(t, cfg.Redis.Enabled)

	// Suggestion defaults
	assert.Equal(t, 5, cfg.Suggestion.SimilarLimit)
	assert.Equal(t, 1.0, cfg.Suggestion.MaxExpectedDistance)
	assert.False(t, cfg.Suggestion.StripMarkdown)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				return cfg
			},
			wantErr: false,
		},
		{
			name: "invalid port",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Server.Port = 70000
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid server port",
		},
		{
			name: "missing API key",
			config: func() *Config {
				return DefaultConfig()
			},
			wantErr: true,
			errMsg:  "OpenAI API key is required",
		},
		{
			name: "offline providers without key",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.ChatProvider = ChatProviderMock
				cfg.Embeddings.Provider = EmbeddingProviderHash
				return cfg
			},
			wantErr: false,
		},
		{
			name: "mock chat still needs a key for openai embeddings",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.ChatProvider = ChatProviderMock
				return cfg
			},
			wantErr: true,
			errMsg:  "OpenAI API key is required",
		},
		{
			name: "unknown chat provider",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.OpenAI.ChatProvider = "llama"
				return cfg
			},
			wantErr: true,
			errMsg:  "unknown chat provider",
		},
		{
			name: "base URL without key",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.BaseURL = "http://localhost:11434/v1"
				return cfg
			},
			wantErr: false,
		},
		{
			name: "unknown backend",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Vector.Backend = "faiss"
				return cfg
			},
			wantErr: true,
			errMsg:  "unknown vector backend",
		},
		{
			name: "memory backend ignores qdrant settings",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Vector.Backend = BackendMemory
				cfg.Qdrant.Host = ""
				return cfg
			},
			wantErr: false,
		},
		{
			name: "empty qdrant collection",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Qdrant.Collection = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "qdrant collection cannot be empty",
		},
		{
			name: "unknown embeddings provider",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Embeddings.Provider = "bert"
				return cfg
			},
			wantErr: true,
			errMsg:  "unknown embeddings provider",
		},
		{
			name: "non-positive max expected distance",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Suggestion.MaxExpectedDistance = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "max expected distance must be positive",
		},
		{
			name: "unsupported database driver",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Database.Driver = "mysql"
				cfg.Database.DSN = "user@/tasks"
				return cfg
			},
			wantErr: true,
			errMsg:  "unsupported database driver",
		},
		{
			name: "temperature out of range",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.OpenAI.Temperature = 3
				return cfg
			},
			wantErr: true,
			errMsg:  "temperature",
		},
		{
			name: "no retry attempts",
			config: func() *Config {
				cfg := DefaultConfig()
				cfg.OpenAI.APIKey = testAPIKey
				cfg.Resilience.RetryAttempts = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "retry attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config().Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testAPIKey)
	t.Setenv("TASKFLOW_PORT", "9191")
	t.Setenv("TASKFLOW_VECTOR_BACKEND", "MEMORY")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("TASKFLOW_AI_MODEL", "gpt-4o-mini")
	t.Setenv("TASKFLOW_OPENAI_TEMPERATURE", "0.2")
	t.Setenv("TASKFLOW_EMBEDDINGS_PROVIDER", "hash")
	t.Setenv("TASKFLOW_EMBEDDINGS_DIMENSIONS", "64")
	t.Setenv("TASKFLOW_SUGGEST_MAX_EXPECTED_DISTANCE", "0.8")
	t.Setenv("TASKFLOW_SUGGEST_SIMILAR_LIMIT", "3")
	t.Setenv("TASKFLOW_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TASKFLOW_REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("TASKFLOW_RETRY_ATTEMPTS", "5")
	t.Setenv("TASKFLOW_BREAKER_TIMEOUT_SECONDS", "10")
	t.Setenv("TASKFLOW_CHAT_PROVIDER", "Mock")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Vector.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, 0.2, cfg.OpenAI.Temperature)
	assert.Equal(t, EmbeddingProviderHash, cfg.Embeddings.Provider)
	assert.Equal(t, 64, cfg.Embeddings.Dimensions)
	assert.Equal(t, 0.8, cfg.Suggestion.MaxExpectedDistance)
	assert.Equal(t, 3, cfg.Suggestion.SimilarLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Resilience.RetryAttempts)
	assert.Equal(t, 10, cfg.Resilience.BreakerTimeoutSeconds)
	assert.Equal(t, 200, cfg.Resilience.RetryInitialDelayMs)
	assert.Equal(t, ChatProviderMock, cfg.OpenAI.ChatProvider)
}

func TestLoadConfig_InvalidNumbersKeepDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testAPIKey)
	t.Setenv("TASKFLOW_PORT", "not-a-port")
	t.Setenv("TASKFLOW_SUGGEST_MAX_EXPECTED_DISTANCE", "far")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1.0, cfg.Suggestion.MaxExpectedDistance)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskflow.yaml")
	content := `
server:
  port: 7070
vector:
  backend: memory
openai:
  api_key: file-key
  chat_model: gpt-4.1
suggestion:
  max_expected_distance: 1.4
  strip_markdown: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TASKFLOW_CONFIG_FILE", path)
	t.Setenv("OPENAI_API_KEY", "")
	// Environment still wins over the file.
	t.Setenv("TASKFLOW_PORT", "7171")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Vector.Backend)
	assert.Equal(t, "file-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.ChatModel)
	assert.Equal(t, 1.4, cfg.Suggestion.MaxExpectedDistance)
	assert.True(t, cfg.Suggestion.StripMarkdown)
	// Untouched keys keep defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testAPIKey)
	t.Setenv("TASKFLOW_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Address(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8088
	assert.Equal(t, "0.0.0.0:8088", cfg.Address())
}
