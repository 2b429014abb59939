package goSession

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call Build
// once, and discard it.
type Builder struct {
	config  Config
	api     API
	env     Environment
	storage session.Storage
	redis   redis.UniversalClient
	logger  *slog.Logger
	clock   func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder holding [DefaultConfig] and the server environment.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		env:    ServerEnvironment,
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPI sets the collaborator that performs login, register, refresh and me. Required.
func (b *Builder) WithAPI(api API) *Builder {
	b.api = api
	return b
}

// WithEnvironment selects client or server behavior. The default is [ServerEnvironment].
func (b *Builder) WithEnvironment(env Environment) *Builder {
	b.env = env
	return b
}

// WithStorage sets the client token storage. Ignored on servers.
func (b *Builder) WithStorage(storage session.Storage) *Builder {
	b.storage = storage
	return b
}

// WithRedis backs client token storage with Redis when no explicit storage is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for expiry arithmetic, cookies and audit stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithAuditSink sets the destination for audit events. Auditing must also be
// enabled in [AuditConfig].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms records guard and refresh latency. It has no effect while
// metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.api == nil {
		return nil, errors.New("api collaborator required")
	}
	if b.env == nil {
		return nil, errors.New("environment required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		api:    b.api,
		env:    b.env,
		logger: logger,
		clock:  b.clock,
	}

	// -------- TOKEN STORE --------
	if session.IsClient(b.env) {
		storage := b.storage
		if storage == nil && b.redis != nil {
			storage = session.NewRedisStorage(b.redis, cfg.Store.RedisPrefix)
		}
		if storage == nil {
			storage = session.NewMemoryStorage()
		}
		engine.storage = storage
	}

	storeOpts := []session.Option{
		session.WithKeys(session.DefaultKeys(cfg.Store.KeyPrefix)),
		session.WithLogger(logger),
	}
	if b.clock != nil {
		storeOpts = append(storeOpts, session.WithClock(b.clock))
	}
	engine.store = session.NewStore(engine.storage, b.env, storeOpts...)

	// -------- REFRESH COORDINATOR --------
	refreshCfg := refresh.Config{
		Exchanger: refresh.ExchangeFunc(b.api.Refresh),
		Scope:     refresh.ScopeToken,
		Timeout:   cfg.Refresh.Timeout,
		OnStart:   engine.onRefreshStart,
		OnShared:  engine.onRefreshShared,
		OnSettle:  engine.onRefreshSettle,
	}
	if session.IsClient(b.env) {
		refreshCfg.Scope = refresh.ScopeProcess
		refreshCfg.Store = engine.store
	}
	engine.refresher = refresh.New(refreshCfg)

	engine.flowDeps = flows.Deps{
		Guard: flows.GuardDeps{
			Me:       b.api.Me,
			Refresh:  engine.refresher.Refresh,
			Classify: engine.Classify,
		},
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
