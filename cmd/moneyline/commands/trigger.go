package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/pkg/httputil"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// triggerCmd is the external-cron path into the daily pick job
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "오늘의 픽 생성 트리거 (외부 cron용)",
	Long: `실행 중인 API 서버에 POST /jobs/daily-pick 을 보냅니다.

CRON_SECRET 을 Bearer 토큰으로 사용하며, 전송 오류나
retryable 응답일 때만 재시도합니다.

Example:
  go run ./cmd/moneyline trigger
  go run ./cmd/moneyline trigger --url https://picks.example.com --retries 5`,
	RunE: runTrigger,
}

var (
	triggerURL     string
	triggerRetries int
	triggerDelay   time.Duration
)

func init() {
	rootCmd.AddCommand(triggerCmd)

	triggerCmd.Flags().StringVar(&triggerURL, "url", "", "API 서버 주소 (기본값: http://localhost:PORT)")
	triggerCmd.Flags().IntVar(&triggerRetries, "retries", 3, "최대 재시도 횟수")
	triggerCmd.Flags().DurationVar(&triggerDelay, "retry-delay", 5*time.Second, "재시도 간격")
}

// triggerResponse covers both the success and the failure body
type triggerResponse struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	Error           string `json:"error"`
	Code            string `json:"code"`
	Retryable       bool   `json:"retryable"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	PickGenerated   *struct {
		Selection  string  `json:"selection"`
		Odds       int     `json:"odds"`
		Confidence float64 `json:"confidence"`
	} `json:"pick_generated"`
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	if cfg.Auth.CronSecret == "" {
		return fmt.Errorf("❌ CRON_SECRET is not configured")
	}

	base := triggerURL
	if base == "" {
		base = "http://localhost:" + cfg.Port
	}
	url := strings.TrimRight(base, "/") + "/jobs/daily-pick"

	// the server may hold the request for a full recommender call
	client := httputil.NewWithTimeout(log, cfg.Recommender.Timeout+30*time.Second).DisableRetry()
	headers := map[string]string{"Authorization": "Bearer " + cfg.Auth.CronSecret}

	ctx := context.Background()
	retries := max(triggerRetries, 0)
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			fmt.Printf("   retrying in %v (attempt %d/%d)\n", triggerDelay, attempt, retries)
			time.Sleep(triggerDelay)
		}

		body, retryable, err := postTrigger(ctx, client, url, headers)
		if err == nil {
			printTrigger(body)
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
		log.WithField("attempt", attempt+1).WithError(err).Warn("Daily pick trigger failed")
	}

	fmt.Printf("❌ Trigger failed: %s\n", logger.Redact(lastErr.Error(), cfg.Secrets()))
	return lastErr
}

// postTrigger sends one request. Transport errors and bodies marked
// retryable are reported as retryable.
func postTrigger(ctx context.Context, client *httputil.Client, url string, headers map[string]string) (*triggerResponse, bool, error) {
	resp, err := client.PostJSON(ctx, url, struct{}{}, headers)
	if err != nil {
		return nil, true, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	var body triggerResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, resp.StatusCode >= 500, &httputil.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode >= 300 || !body.Success {
		return nil, body.Retryable, fmt.Errorf("status %d %s: %s", resp.StatusCode, body.Code, body.Error)
	}
	return &body, false, nil
}

func printTrigger(body *triggerResponse) {
	fmt.Printf("✅ %s (%s, %dms)\n", body.Message, body.Status, body.ExecutionTimeMs)
	if p := body.PickGenerated; p != nil {
		fmt.Printf("   Pick: %s %+d (confidence %.1f)\n", p.Selection, p.Odds, p.Confidence)
	}
}
