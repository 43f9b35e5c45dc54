package api

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"

	"github.com/KevinGoltermann/moneyline-sub000/internal/api/handlers"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// RouterDeps collects everything the router wires
type RouterDeps struct {
	Public *handlers.PublicHandler
	Jobs   *handlers.JobsHandler
	Admin  *handlers.AdminHandler
	Health *handlers.HealthHandler
	Live   http.Handler // nil disables /ws/picks

	Metrics        *metrics.Metrics
	MetricsEnabled bool

	CronSecret   string
	AdminSecret  string
	AdminLimiter RateLimiter
	PublicMaxAge time.Duration

	// TrustedProxies gate X-Forwarded-For for the limiter key
	TrustedProxies []netip.Prefix

	Logger *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", d.Health.GetHealth).Methods(http.MethodGet)
	if d.MetricsEnabled {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Public reads
	public := r.NewRoute().Subrouter()
	public.Use(cacheMiddleware(d.PublicMaxAge))
	public.HandleFunc("/today", d.Public.GetToday).Methods(http.MethodGet)
	public.HandleFunc("/performance", d.Public.GetPerformance).Methods(http.MethodGet)

	if d.Live != nil {
		r.Handle("/ws/picks", d.Live).Methods(http.MethodGet)
	}

	// Scheduler trigger
	r.HandleFunc("/jobs/daily-pick", d.Jobs.GetDailyPickStatus).Methods(http.MethodGet)
	trigger := r.PathPrefix("/jobs").Subrouter()
	trigger.Use(bearerAuth(d.CronSecret, d.Logger))
	trigger.HandleFunc("/daily-pick", d.Jobs.TriggerDailyPick).Methods(http.MethodPost)

	// Operator
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(rateLimitMiddleware(d.AdminLimiter, "admin", d.TrustedProxies, d.Logger))
	admin.Use(bearerAuth(d.AdminSecret, d.Logger))
	admin.HandleFunc("/unsettled", d.Admin.GetUnsettled).Methods(http.MethodGet)
	admin.HandleFunc("/picks/{id}", d.Admin.GetPick).Methods(http.MethodGet)
	admin.HandleFunc("/settle", d.Admin.Settle).Methods(http.MethodPost)
	admin.HandleFunc("/recompute", d.Admin.Recompute).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.RespondError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	})

	r.Use(loggingMiddleware(d.Logger, d.Metrics))
	r.Use(recoveryMiddleware(d.Logger))

	return r
}
