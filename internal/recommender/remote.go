// Package recommender provides the Recommender adapters: a remote model
// service and a built-in rules-based heuristic.
package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/httputil"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

type timeoutKey struct{}

// WithTimeout overrides the call budget of the remote recommender for ctx.
// The scheduler uses a shorter budget than operator requests.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

func timeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok && d > 0 {
		return d
	}
	return fallback
}

// Remote calls an external model service
// ⭐ SSOT: 추천 모델 서비스 호출은 여기서만
type Remote struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
	timeout    time.Duration
}

var _ contracts.Recommender = (*Remote)(nil)

// NewRemote creates a model service client. baseURL is the service root;
// requests go to baseURL/predict.
func NewRemote(httpClient *httputil.Client, log *logger.Logger, baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		httpClient: httpClient,
		logger:     log,
		url:        strings.TrimRight(baseURL, "/") + "/predict",
		timeout:    timeout,
	}
}

// predictResponse is a recommendation or an explicit refusal
type predictResponse struct {
	NoViablePick bool   `json:"no_viable_pick"`
	Reason       string `json:"reason,omitempty"`
	contracts.Recommendation
}

// Recommend posts the request and waits at most the configured budget
func (r *Remote) Recommend(ctx context.Context, req contracts.RecommendRequest) (*contracts.Recommendation, error) {
	const op = "recommender.remote"

	budget := timeoutFrom(ctx, r.timeout)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	resp, err := r.httpClient.PostJSON(ctx, r.url, req, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &contracts.Error{Kind: contracts.KindRecommenderUnavailable, Op: op,
				Msg: fmt.Sprintf("timed out after %s", budget), Err: err}
		}
		return nil, contracts.Wrap(contracts.KindRecommenderUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, contracts.Wrap(contracts.KindRecommenderUnavailable, op, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"games":       len(req.Games),
	}).Debug("Recommender responded")

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, contracts.E(contracts.KindNoViablePick, op, "model service found no viable pick")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, contracts.Wrap(contracts.KindRecommenderUnavailable, op,
			&httputil.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)})
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &contracts.Error{Kind: contracts.KindRecommenderUnavailable, Op: op, Msg: "malformed response", Err: err}
	}
	if out.NoViablePick {
		msg := "model service found no viable pick"
		if out.Reason != "" {
			msg = out.Reason
		}
		return nil, contracts.E(contracts.KindNoViablePick, op, msg)
	}
	if strings.TrimSpace(out.Selection) == "" || out.Odds == 0 {
		return nil, contracts.E(contracts.KindRecommenderUnavailable, op, "malformed response: missing selection or odds")
	}

	rec := out.Recommendation
	if rec.Market == "" {
		rec.Market = contracts.MarketMoneyline
	}
	return &rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
