package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptdeck/promptdeck/internal/api/handlers"
	"github.com/promptdeck/promptdeck/internal/api/middleware"
	"github.com/promptdeck/promptdeck/internal/audit"
	"github.com/promptdeck/promptdeck/internal/auth"
	"github.com/promptdeck/promptdeck/internal/cache"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/prompt"
	"github.com/promptdeck/promptdeck/internal/queue"
	"github.com/promptdeck/promptdeck/internal/webhook"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	store  prompt.Store
	jwt    *auth.JWTMiddleware
	apikey *auth.APIKeyMiddleware
	queue  *queue.Client
	llmGW  llm.Gateway
}

// NewRouter wires the service graph. db and rdb may be nil: without a
// database the prompt store falls back to the in-memory implementation,
// and without redis caching and the async eval queue are disabled.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	var store prompt.Store
	if db != nil {
		store = prompt.NewPostgresStore(db)
		if rdb != nil {
			store = prompt.NewCachedStore(store, cache.New(rdb))
		}
	} else {
		store = prompt.NewMemoryStore()
	}

	var queueClient *queue.Client
	if rdb != nil {
		queueClient = queue.NewClient(cfg.Redis)
	}

	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		store:  store,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		apikey: auth.NewAPIKeyMiddleware(db, cfg.Auth.APIKeyHeader),
		queue:  queueClient,
		llmGW:  llm.NewGateway(cfg.LLM),
	}
}

// Store exposes the configured prompt store, used by cmd/worker and tests.
func (rt *Router) Store() prompt.Store {
	return rt.store
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)

	auditSvc := audit.NewService(rt.db)

	var webhookSvc *webhook.Service
	if rt.db != nil {
		webhookSvc = webhook.NewService(rt.db, webhook.NewDispatcher(rt.db))
	}

	promptH := handlers.NewPromptHandler(rt.store, auditSvc, webhookSvc)
	evalH := handlers.NewEvalHandler(rt.store, rt.queue)
	runH := handlers.NewRunHandler(rt.llmGW)
	adminH := handlers.NewAdminHandler(auditSvc)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth: try API key first, then JWT. Both pass anonymous
		// requests through; handlers that need an identity reject them.
		r.Use(rt.apikey.Authenticate)
		r.Use(rt.jwt.Authenticate)

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", promptH.List)
			r.Post("/", promptH.Create)
			r.Get("/{id}", promptH.Get)
			r.Put("/{id}", promptH.Update)
			r.Patch("/{id}", promptH.Update)
			r.Delete("/{id}", promptH.Delete)

			r.Get("/{id}/versions", promptH.ListVersions)
			r.Post("/{id}/versions", promptH.CreateVersion)
			r.Get("/{id}/versions/{version}", promptH.GetVersion)

			r.Get("/{id}/comments", promptH.ListComments)
			r.Post("/{id}/comments", promptH.AddComment)

			r.Get("/{id}/versions/{version}/evals", evalH.ListEvals)
			r.Post("/{id}/versions/{version}/evals", evalH.CreateEval)
			r.Post("/{id}/versions/{version}/evals/run", evalH.RunAsync)
		})

		r.Post("/run", runH.Run)

		// Key and webhook management need the database for storage.
		if rt.db != nil {
			keyH := handlers.NewAPIKeyHandler(auth.NewAPIKeyService(rt.db))
			r.Route("/keys", func(r chi.Router) {
				r.Post("/", keyH.Issue)
				r.Get("/", keyH.List)
				r.Delete("/{id}", keyH.Revoke)
			})

			webhookH := handlers.NewWebhookHandler(webhookSvc)
			r.Route("/webhooks", func(r chi.Router) {
				r.Post("/", webhookH.Create)
				r.Get("/", webhookH.List)
				r.Delete("/{id}", webhookH.Delete)
			})
		}

		r.Get("/admin/audit", adminH.AuditLogs)
	})

	return r
}
