package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/internal/api"
	"github.com/KevinGoltermann/moneyline-sub000/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 공개 조회, 스케줄러 트리거, 운영자 엔드포인트 제공
- 선택적으로 내장 스케줄러 실행 (--with-scheduler)

Endpoints:
  GET  /health               - Health check
  GET  /metrics              - Prometheus metrics
  GET  /today                - 오늘의 픽과 성적 요약
  GET  /performance          - 성적 통계와 이력
  GET  /ws/picks             - 픽 이벤트 실시간 스트림
  GET  /jobs/daily-pick      - 오늘 픽 생성 여부
  POST /jobs/daily-pick      - 오늘 픽 생성 트리거 (cron secret)
  GET  /admin/unsettled      - 미정산 픽 목록 (admin secret)
  GET  /admin/picks/{id}     - 픽 상세 (admin secret)
  POST /admin/settle         - 픽 정산 (admin secret)
  POST /admin/recompute      - 픽 재계산 (admin secret)

Example:
  go run ./cmd/moneyline api
  go run ./cmd/moneyline api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "내장 스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Moneyline API Server ===")

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Wire application
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	// 3. Schema
	if applied, err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	} else if len(applied) > 0 {
		log.WithField("versions", applied).Info("Applied migrations")
	}

	// 4. Live feed
	go a.hub.Run(ctx)

	// 5. Handlers
	secrets := cfg.Secrets()
	checks := map[string]handlers.Check{
		"redis": a.redis.Ping,
	}
	if a.db != nil {
		checks["database"] = a.db.Ping
	}

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterDeps{
		Public: handlers.NewPublicHandler(a.public, log, secrets),
		Jobs:   handlers.NewJobsHandler(a.engine, cfg.Env, cfg.Recommender.Timeout, log, secrets),
		Admin:  handlers.NewAdminHandler(a.engine, log, secrets),
		Health: handlers.NewHealthHandler("moneyline", checks),
		Live:   a.hub,

		Metrics:        a.metrics,
		MetricsEnabled: cfg.MetricsEnabled,

		CronSecret:   cfg.Auth.CronSecret,
		AdminSecret:  cfg.Auth.AdminSecret,
		AdminLimiter: api.NewRateLimiter(a.redis, cfg.Auth.AdminRateLimit, cfg.Auth.AdminRateWindow),
		PublicMaxAge: cfg.PublicCacheTTL,

		TrustedProxies: trusted,

		Logger: log,
	})

	// 6. Optional in-process scheduler
	if withScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.WithField("jobs", sched.GetAllJobs()).Info("Scheduler started")
	}

	// 7. Start server with graceful shutdown
	server := api.New(cfg, log, router)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Printf("   Timezone: %s  Recommender: %s  Store: %s\n", cfg.Location(), cfg.Recommender.Mode, cfg.StoreDriver)
	if withScheduler {
		fmt.Printf("   Daily pick schedule: %s\n", cfg.Schedule.DailyPick)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
