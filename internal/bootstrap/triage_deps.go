package bootstrap

import (
	"context"
	"time"

	"triage_server/adapter/out/cache"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/internal/stream"
	pkgcache "triage_server/pkg/cache"
	"triage_server/pkg/crypto"
	"triage_server/pkg/metrics"
	"triage_server/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const connectTimeout = 15 * time.Second

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB    *pgxpool.Pool
	SQLDB *sqlx.DB
	Redis *redis.Client

	// Repositories
	EmailRepo   *persistence.EmailAdapter
	AccountRepo *persistence.AccountAdapter

	// Providers (nil without Google credentials)
	Gmail    *provider.GmailAdapter
	Calendar *provider.GoogleCalendarAdapter

	// Messaging
	Stream   *stream.RedisStream
	Producer *stream.Producer

	// Pipeline
	Metrics     *metrics.TriageMetrics
	ResultCache *cache.ResultCache
	Classifier  *triage.Classifier
	Governor    *triage.Governor

	// Ad hoc API classifications keep their own in-process cache so
	// caller-supplied ids never reach mailbox results.
	APICache    *cache.ResultCache
	APIGovernor *triage.Governor

	// Services
	Processor *triage.Processor
	Sync      *triage.SyncService
	Inbox     *triage.InboxService
	Accounts  *triage.AccountService
}

// NewDependencies connects storage and wires the pipeline. The returned
// cleanup closes every opened connection in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	if err := cfg.RequireStorage(); err != nil {
		return nil, nil, err
	}

	deps := &Dependencies{Config: cfg, Log: log}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// =========================================================================
	// Storage
	// =========================================================================

	pgCfg := database.DefaultPostgresConfig()
	if cfg.DBMaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	db, err := database.NewPostgres(connectCtx, cfg.DatabaseURL, pgCfg)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	if err := database.EnsureSchema(connectCtx, db); err != nil {
		return fail(err)
	}

	sqlDB, err := database.NewSQLX(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fail(err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { _ = sqlDB.Close() })

	rdb, err := database.NewRedis(connectCtx, cfg.RedisURL, database.DefaultRedisConfig())
	if err != nil {
		return fail(err)
	}
	deps.Redis = rdb
	cleanups = append(cleanups, func() { _ = rdb.Close() })

	// =========================================================================
	// Repositories
	// =========================================================================

	var cipher *crypto.TokenCipher
	if cfg.TokenEncryptionKey != "" {
		cipher, err = crypto.NewTokenCipher([]byte(cfg.TokenEncryptionKey))
		if err != nil {
			return fail(err)
		}
	} else {
		log.Warn().Msg("TOKEN_ENCRYPTION_KEY not set, refresh tokens are stored in plaintext")
	}
	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.AccountRepo = persistence.NewAccountAdapter(sqlDB, cipher)

	// =========================================================================
	// Pipeline
	// =========================================================================

	policy, err := triage.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return fail(err)
	}
	rules := triage.NewRuleEngine(policy)
	dates := triage.NewDateResolver(rules, triage.WithLocation(cfg.Location))

	var llmPort out.LLMPort
	if cfg.LLMAPIKey != "" {
		llmPort = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
			MaxAttempts: cfg.LLMMaxRetries,
		}, log)
	} else {
		log.Warn().Msg("no completion API key configured, every message takes the fallback path")
	}

	deps.Metrics = metrics.NewTriageMetrics()
	deps.ResultCache = cache.NewResultCache(&cache.ResultCacheConfig{
		MaxEntries: cfg.CacheMaxEntries,
		TTL:        cfg.CacheTTL,
	}, pkgcache.NewRedisCache(rdb, ""), log)

	limiter := ratelimit.NewIntervalLimiter(&ratelimit.IntervalConfig{
		Interval:    cfg.GovernorInterval,
		Concurrency: int64(cfg.GovernorConcurrency),
	})
	deps.Classifier = triage.NewClassifier(llmPort, rules, dates, deps.Metrics, log)
	deps.Governor = triage.NewGovernor(deps.Classifier, limiter, deps.ResultCache, deps.Metrics, log)

	deps.APICache = cache.NewResultCache(&cache.ResultCacheConfig{
		MaxEntries: cfg.CacheMaxEntries,
		TTL:        cfg.CacheTTL,
	}, nil, log)
	deps.APIGovernor = triage.NewGovernor(deps.Classifier, limiter, deps.APICache, deps.Metrics, log)

	// =========================================================================
	// Providers and messaging
	// =========================================================================

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google := &provider.GoogleConfig{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret}
		deps.Gmail = provider.NewGmailAdapter(google, log)
		deps.Calendar = provider.NewGoogleCalendarAdapter(google, cfg.Location, log)
	} else {
		log.Warn().Msg("Google credentials not set, mailbox sync and calendar events are disabled")
	}

	deps.Stream = stream.NewRedisStream(rdb, stream.DefaultGroup)
	deps.Producer = stream.NewProducer(deps.Stream)

	// =========================================================================
	// Services
	// =========================================================================

	var calendarPort out.CalendarProvider
	if deps.Calendar != nil {
		calendarPort = deps.Calendar
	}
	deps.Processor = triage.NewProcessor(deps.EmailRepo, deps.AccountRepo, calendarPort, deps.Governor,
		&triage.ProcessorConfig{BatchSize: cfg.ProcessorBatchSize}, log)

	if deps.Gmail != nil {
		var publisher out.JobPublisher
		if cfg.StreamEnabled {
			publisher = deps.Producer
		}
		deps.Sync = triage.NewSyncService(deps.AccountRepo, deps.EmailRepo, deps.Gmail, publisher, &triage.SyncConfig{
			LookbackDays: cfg.SyncLookbackDays,
			MaxResults:   cfg.SyncMaxResults,
			PublishJobs:  cfg.StreamEnabled,
		}, log)
	}

	deps.Inbox = triage.NewInboxService(deps.EmailRepo)
	deps.Accounts = triage.NewAccountService(deps.AccountRepo)

	return deps, cleanup, nil
}
