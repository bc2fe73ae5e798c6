package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"legal-ease-backend/internal/extract"
	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/llm/gemini"
	"legal-ease-backend/internal/llm/openai"
	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/ratelimit"
	"legal-ease-backend/internal/session"
	"legal-ease-backend/internal/shared/config"
	"legal-ease-backend/internal/shared/metrics"
	"legal-ease-backend/internal/shared/server"
	"legal-ease-backend/internal/shared/storage/db"
	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/usage"
	"legal-ease-backend/internal/webapi"
	"legal-ease-backend/internal/whatsapp"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Sessions        *session.Store
	Limiter         *ratelimit.Limiter
	AI              llm.Client
	AIProvider      string
	UsageService    *usage.Service
	Metrics         *metrics.Metrics
	Orchestrator    *orchestrator.Service
	Dispatcher      *whatsapp.Dispatcher
	WebHandler      *webapi.Handler
	WhatsAppHandler *whatsapp.Handler
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.Configure(cfg.LogLevel)
	ctx := context.Background()

	app := &App{Config: cfg, Metrics: metrics.New()}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.UsageService = usage.NewPostgresService(usage.NewPGStore(sqlDB))
	} else {
		app.UsageService = usage.NewService()
	}

	app.Sessions = session.NewStore(session.Config{
		TTL:     cfg.SessionTTL,
		OnEvict: app.Metrics.IncSessionEvicted,
	})
	app.Metrics.RegisterActiveSessions(func() float64 { return float64(app.Sessions.Len()) })

	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}
	app.Limiter = ratelimit.New(ratelimit.Config{
		Policy: policy,
		OnDeny: func(scope ratelimit.Scope) { app.Metrics.IncRateLimitDenied(string(scope)) },
	})

	app.AI, app.AIProvider, err = buildAI(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.Orchestrator = orchestrator.NewService(orchestrator.Deps{
		Sessions:  app.Sessions,
		Limiter:   app.Limiter,
		Extractor: extract.NewPDFExtractor(),
		AI:        app.AI,
		Usage:     app.UsageService,
		Metrics:   app.Metrics,
		Config: orchestrator.Config{
			MaxFileSize:       cfg.MaxUploadBytes,
			MaxQuestionLength: cfg.MaxQuestionLength,
		},
	})

	bot, err := buildBot(cfg, app.Orchestrator, app.Metrics)
	if err != nil {
		return nil, err
	}
	app.Dispatcher = whatsapp.NewDispatcher(cfg.WhatsAppWorkers, cfg.WhatsAppQueueSize, bot.Handle)

	app.WebHandler = webapi.NewHandler(app.Orchestrator, app.UsageService, webapi.Options{
		AIProvider:  app.AIProvider,
		MaxFileSize: cfg.MaxUploadBytes,
	})
	app.WhatsAppHandler = whatsapp.NewHandler(app.Dispatcher)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		WebHandler:      app.WebHandler,
		WhatsAppHandler: app.WhatsAppHandler,
		Metrics:         app.Metrics,
	})

	return app, nil
}

// RunBackground runs the session sweeper, the limiter sweeper and the chat
// dispatcher until ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) error {
	interval := a.Config.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Sessions.Run(gctx, interval) })
	g.Go(func() error { return a.Limiter.Run(gctx, interval) })
	g.Go(func() error { return a.Dispatcher.Run(gctx) })
	return g.Wait()
}

// Close releases the session store and the database pool.
func (a *App) Close() error {
	a.Sessions.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; activity ledger kept in memory")
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database unavailable; activity ledger kept in memory: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildPolicy(cfg config.Config) (ratelimit.Policy, error) {
	policy := ratelimit.Policy{}
	add := func(scope ratelimit.Scope, l config.Limit) {
		if l.Count > 0 && l.Window > 0 {
			policy[scope] = ratelimit.Rule{Limit: l.Count, Window: l.Window}
		}
	}
	add(ratelimit.ScopeUpload, cfg.UploadLimit)
	add(ratelimit.ScopeQuestion, cfg.QuestionLimit)
	add(ratelimit.ChannelScope(string(orchestrator.ChannelWhatsApp)), cfg.WhatsAppLimit)

	if path := strings.TrimSpace(cfg.RateLimitPolicyFile); path != "" {
		override, err := ratelimit.LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		policy = policy.Merge(override)
	}
	return policy, nil
}

func buildAI(ctx context.Context, cfg config.Config) (llm.Client, string, error) {
	var (
		base llm.Client
		err  error
	)
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			base, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		}
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			base, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTimeout)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("init %s client: %w", cfg.LLMProvider, err)
	}
	if base == nil {
		log.Printf("bootstrap: no API key for provider %q; using demo analysis client", cfg.LLMProvider)
		return llm.MockClient{}, "mock", nil
	}

	log.Printf("bootstrap: AI provider %s (model %s)", cfg.LLMProvider, cfg.LLMModel)
	return llm.NewResilient(base, resilienceConfig(cfg)), cfg.LLMProvider, nil
}

func resilienceConfig(cfg config.Config) llm.ResilienceConfig {
	rc := llm.DefaultResilienceConfig()
	if cfg.LLMTimeout > 0 {
		rc.Timeout = cfg.LLMTimeout
	}
	return rc
}

const mediaTimeout = 30 * time.Second

// botTimeout bounds one chat message: the media download plus a full
// retried AI call. Replies get their own send budget on top of this.
func botTimeout(cfg config.Config) time.Duration {
	return mediaTimeout + resilienceConfig(cfg).Budget() + 10*time.Second
}

func buildBot(cfg config.Config, svc whatsapp.Orchestrator, m *metrics.Metrics) (*whatsapp.Bot, error) {
	bot := &whatsapp.Bot{
		Svc:     svc,
		Metrics: m,
		Timeout: botTimeout(cfg),
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioAccountSID == "demo" {
		log.Printf("bootstrap: Twilio credentials missing; WhatsApp replies will be logged only")
		bot.Sender = whatsapp.LogSender{}
		bot.Media = whatsapp.PlainFetcher{
			MaxBytes: cfg.MaxUploadBytes,
			Client:   &http.Client{Timeout: mediaTimeout},
		}
		return bot, nil
	}
	client, err := whatsapp.NewTwilio(whatsapp.TwilioConfig{
		AccountSID:    cfg.TwilioAccountSID,
		AuthToken:     cfg.TwilioAuthToken,
		From:          cfg.TwilioWhatsAppNumber,
		SendRPS:       cfg.WhatsAppSendRPS,
		MaxMediaBytes: cfg.MaxUploadBytes,
		Timeout:       mediaTimeout,
	})
	if err != nil {
		return nil, err
	}
	bot.Sender = client
	bot.Media = client
	return bot, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
