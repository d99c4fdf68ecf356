// Package di provides dependency injection container for the application
package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"taskflow-ai/internal/agent"
	"taskflow-ai/internal/ai"
	"taskflow-ai/internal/api"
	"taskflow-ai/internal/api/handlers"
	"taskflow-ai/internal/catalog"
	"taskflow-ai/internal/circuitbreaker"
	"taskflow-ai/internal/config"
	"taskflow-ai/internal/embeddings"
	"taskflow-ai/internal/estimator"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/mcp"
	"taskflow-ai/internal/persistence"
	"taskflow-ai/internal/ratelimit"
	"taskflow-ai/internal/retry"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/storage"
	"taskflow-ai/internal/suggest"
	"taskflow-ai/internal/tasks"
)

const (
	memoryCacheSize = 10000
	redisKeyPrefix  = "taskflow:emb:"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      logging.Logger
	Limiter     *ratelimit.Limiter
	Embedder    embeddings.Embedder
	VectorStore *storage.ResilientStore
	Index       *similarity.Index
	Estimator   *estimator.Estimator
	LLM         ai.AIClient
	DB          *persistence.DB
	Catalog     catalog.Store
	TaskSource  tasks.Source
	Syncer      *tasks.Syncer
	Suggester   *suggest.Orchestrator
	Agent       *agent.Service
	MCP         *mcp.TaskServer
	Router      *api.Router

	redis     *redis.Client
	baseStore storage.VectorStore
}

// Option overrides a component before the container wires the rest
type Option func(*Container)

// WithLogger replaces the logger built from the logging config
func WithLogger(logger logging.Logger) Option {
	return func(c *Container) { c.Logger = logger }
}

// WithLLM replaces the OpenAI chat client
func WithLLM(client ai.AIClient) Option {
	return func(c *Container) { c.LLM = client }
}

// WithVectorStore replaces the configured vector backend
func WithVectorStore(store storage.VectorStore) Option {
	return func(c *Container) { c.baseStore = store }
}

// WithDB uses an already open task database instead of DATABASE_URL
func WithDB(db *persistence.DB) Option {
	return func(c *Container) { c.DB = db }
}

// NewContainer creates a new dependency injection container. Components are
// built in dependency order and the vector collection is initialized.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	container := &Container{
		Config: cfg,
	}
	for _, opt := range opts {
		opt(container)
	}
	if container.Logger == nil {
		// stdout carries the MCP stdio protocol
		container.Logger = logging.New(logging.Options{
			Level:  logging.ParseLogLevel(cfg.Logging.Level),
			JSON:   !strings.EqualFold(cfg.Logging.Format, "text"),
			Output: os.Stderr,
		})
	}

	container.initializeClients()

	if err := container.initializeStorage(ctx); err != nil {
		_ = container.Shutdown()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := container.initializeDatabase(ctx); err != nil {
		_ = container.Shutdown()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := container.initializeServices(); err != nil {
		_ = container.Shutdown()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	container.Logger.Info("Container initialized",
		"vector_backend", cfg.Vector.Backend,
		"embeddings_provider", cfg.Embeddings.Provider,
		"chat_model", container.LLM.Model(),
		"catalog", container.DB != nil,
	)
	return container, nil
}

func (c *Container) resilience(name string) (*retry.Retrier, *circuitbreaker.CircuitBreaker) {
	rc := c.Config.Resilience
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = rc.RetryAttempts
	if rc.RetryInitialDelayMs > 0 {
		retryCfg.InitialDelay = time.Duration(rc.RetryInitialDelayMs) * time.Millisecond
	}

	logger := c.Logger
	breakerCfg := circuitbreaker.DefaultConfig()
	if rc.BreakerFailureThreshold > 0 {
		breakerCfg.FailureThreshold = rc.BreakerFailureThreshold
	}
	if rc.BreakerTimeoutSeconds > 0 {
		breakerCfg.Timeout = time.Duration(rc.BreakerTimeoutSeconds) * time.Second
	}
	breakerCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	return retry.New(retryCfg), circuitbreaker.New(name, breakerCfg)
}

// initializeClients sets up the rate limiter, embedder and chat client
func (c *Container) initializeClients() {
	c.Limiter = ratelimit.PerMinute(c.Config.OpenAI.RateLimitRPM)

	var base embeddings.Embedder
	if c.Config.Embeddings.Provider == config.EmbeddingProviderHash {
		base = embeddings.NewHashEmbedder(c.Config.Embeddings.Dimensions)
	} else {
		base = embeddings.NewOpenAIEmbedder(&c.Config.OpenAI, c.Config.Embeddings.Dimensions, c.Limiter)
	}

	ttl := time.Duration(c.Config.Embeddings.CacheTTLMinutes) * time.Minute
	var cache embeddings.Cache
	if c.Config.Redis.Enabled {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Addr,
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		cache = embeddings.NewRedisCache(c.redis, redisKeyPrefix, ttl)
	} else {
		cache = embeddings.NewMemoryCache(memoryCacheSize, ttl)
	}
	c.Embedder = embeddings.NewCachedEmbedder(base, cache, c.Logger)
}

// initializeStorage sets up storage layer
func (c *Container) initializeStorage(ctx context.Context) error {
	base := c.baseStore
	if base == nil {
		switch c.Config.Vector.Backend {
		case config.BackendMemory:
			base = storage.NewMemoryStore(c.Embedder.Dimensions())
		case config.BackendQdrant:
			base = storage.NewQdrantStore(&c.Config.Qdrant, c.Embedder.Dimensions(), c.Logger)
		default:
			return fmt.Errorf("unknown vector backend: %s", c.Config.Vector.Backend)
		}
	}

	retrier, breaker := c.resilience("vector_store")
	c.VectorStore = storage.NewResilientStore(base, retrier, breaker)
	c.Index = similarity.NewIndex(c.VectorStore, c.Embedder, c.Logger)
	return c.Index.Initialize(ctx)
}

// initializeDatabase opens the task database when one is configured. Without
// it suggestions rely on request-supplied catalogs and reindexing is disabled.
func (c *Container) initializeDatabase(ctx context.Context) error {
	if c.DB == nil && c.Config.Database.DSN != "" {
		db, err := persistence.Open(ctx, c.Config.Database)
		if err != nil {
			return err
		}
		c.DB = db
	}

	if c.DB == nil {
		c.Catalog = catalog.Empty{}
		return nil
	}
	c.Catalog = catalog.NewSQLStore(c.DB)
	c.TaskSource = tasks.NewSQLSource(c.DB)
	return nil
}

// initializeServices sets up core services
func (c *Container) initializeServices() error {
	if c.LLM == nil {
		if c.Config.OpenAI.ChatProvider == config.ChatProviderMock {
			c.Logger.Warn("Using the offline chat provider, suggestions will be empty")
			c.LLM = ai.NewOfflineClient()
		} else {
			client, err := ai.NewOpenAIClient(&c.Config.OpenAI, c.Limiter)
			if err != nil {
				return err
			}
			retrier, breaker := c.resilience("llm")
			c.LLM = ai.NewResilientClient(client, retrier, breaker)
		}
	}

	c.Estimator = estimator.New(nil, nil)
	c.Syncer = tasks.NewSyncer(c.Index, c.TaskSource, c.Config.Suggestion.StripMarkdown, c.Logger)
	c.Suggester = suggest.NewOrchestrator(c.Index, c.LLM, c.Catalog, suggest.Config{
		SimilarLimit:        c.Config.Suggestion.SimilarLimit,
		MaxExpectedDistance: c.Config.Suggestion.MaxExpectedDistance,
	}, c.Logger)
	c.Agent = agent.NewService(c.Index, c.LLM, c.Catalog, c.Logger)

	taskServer, err := mcp.NewTaskServer(c.Estimator, c.Suggester, c.Index, c.Logger)
	if err != nil {
		return err
	}
	c.MCP = taskServer.EnableAgent(c.Agent)

	c.Router = api.NewRouter(c.Config, api.Dependencies{
		Estimator:      c.Estimator,
		Suggester:      c.Suggester,
		Finder:         c.Index,
		Indexer:        c.Syncer,
		Agent:          c.Agent,
		HealthCheckers: c.healthCheckers(),
		MCP:            c.MCP.HTTPHandler(),
		Logger:         c.Logger,
	})
	return nil
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func (c *Container) healthCheckers() map[string]handlers.HealthChecker {
	checkers := map[string]handlers.HealthChecker{
		"vector_store": c.VectorStore,
	}
	if c.DB != nil {
		checkers["database"] = checkFunc(c.DB.PingContext)
	}
	if c.redis != nil {
		checkers["redis"] = checkFunc(func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		})
	}
	return checkers
}

// HealthCheck performs health checks on all backing services
func (c *Container) HealthCheck(ctx context.Context) error {
	for name, checker := range c.healthCheckers() {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", name, err)
		}
	}
	return nil
}

// Shutdown closes the vector store, redis and the database, injected ones
// included
func (c *Container) Shutdown() error {
	var errs []error
	if c.VectorStore != nil {
		if err := c.VectorStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector store: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
