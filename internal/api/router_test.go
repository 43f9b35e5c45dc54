package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/KevinGoltermann/moneyline-sub000/internal/api/handlers"
	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/internal/mocks"
	"github.com/KevinGoltermann/moneyline-sub000/internal/publicread"
	"github.com/KevinGoltermann/moneyline-sub000/internal/realtime"
	"github.com/KevinGoltermann/moneyline-sub000/internal/store"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/redis"
)

const (
	cronSecret  = "cron-secret-value"
	adminSecret = "admin-secret-value"
	oddsKey     = "odds-key-1234"
)

type testServer struct {
	url    string
	engine *engine.Engine
	store  *store.Memory
	feed   *mocks.MockGameFeed
	rec    *mocks.MockRecommender
}

func newTestServer(t *testing.T, adminLimit int) *testServer {
	t.Helper()
	log := logger.Nop()
	secrets := []string{cronSecret, adminSecret, oddsKey}

	ctrl := gomock.NewController(t)
	feed := mocks.NewMockGameFeed(ctrl)
	rec := mocks.NewMockRecommender(ctrl)
	ms := store.NewMemory()
	m := metrics.New()

	eng := engine.New(ms, feed, rec, engine.Options{
		Constraints:   contracts.Constraints{MinConfidence: 60, MinOdds: -200, MaxOdds: 300, MaxRisk: contracts.RiskMedium},
		Location:      time.UTC,
		MaxFutureDays: 7,
	}, log, m)

	mr := miniredis.RunT(t)
	client := redis.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	reads := publicread.NewService(ms, redis.NewCache(client, "moneyline"), time.Minute, time.UTC, log)
	eng.Subscribe(reads.Listener())

	hub := realtime.NewHub(log, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	eng.Subscribe(hub.Listener())

	router := NewRouter(RouterDeps{
		Public: handlers.NewPublicHandler(reads, log, secrets),
		Jobs:   handlers.NewJobsHandler(eng, "test", 20*time.Second, log, secrets),
		Admin:  handlers.NewAdminHandler(eng, log, secrets),
		Health: handlers.NewHealthHandler("moneyline", map[string]handlers.Check{
			"redis": client.Ping,
		}),
		Live:           hub,
		Metrics:        m,
		MetricsEnabled: true,
		CronSecret:     cronSecret,
		AdminSecret:    adminSecret,
		AdminLimiter:   newMemoryLimiter(adminLimit, time.Minute),
		PublicMaxAge:   5 * time.Minute,
		Logger:         log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{url: srv.URL, engine: eng, store: ms, feed: feed, rec: rec}
}

func (s *testServer) do(t *testing.T, method, path, secret, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.url+path, r)
	require.NoError(t, err)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (s *testServer) expectGenerate(selection string) {
	s.feed.EXPECT().Games(gomock.Any(), gomock.Any(), gomock.Any()).Return([]contracts.Game{{
		HomeTeam: "Buffalo Bills", AwayTeam: "Kansas City Chiefs", League: "NFL",
		Odds: map[string]int{contracts.OddsHomeML: 100, contracts.OddsAwayML: -120},
	}}, nil)
	s.rec.EXPECT().Recommend(gomock.Any(), gomock.Any()).Return(&contracts.Recommendation{
		Selection: selection, Market: contracts.MarketMoneyline, League: "NFL", Odds: -120, Confidence: 72,
	}, nil)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 100)

	resp, body := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrigger_Auth(t *testing.T) {
	s := newTestServer(t, 100)

	resp, body := s.do(t, http.MethodPost, "/jobs/daily-pick", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, handlers.CodeUnauthorized, body["code"])

	resp, body = s.do(t, http.MethodPost, "/jobs/daily-pick", "wrong", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, handlers.CodeForbidden, body["code"])

	// the admin secret does not open the trigger
	resp, _ = s.do(t, http.MethodPost, "/jobs/daily-pick", adminSecret, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTrigger_GenerateThenIdempotent(t *testing.T) {
	s := newTestServer(t, 100)
	s.expectGenerate("Kansas City Chiefs ML")

	resp, body := s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "generated", body["status"])
	assert.Contains(t, body, "execution_time_ms")
	pick, ok := body["pick_generated"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, pick["id"])
	assert.Equal(t, "Kansas City Chiefs ML", pick["selection"])

	resp, body = s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Pick already exists for today", body["message"])
	assert.NotContains(t, body, "pick_generated")

	resp, body = s.do(t, http.MethodGet, "/jobs/daily-pick", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["pick_exists_today"])
	assert.Equal(t, "test", body["environment"])
}

func TestTrigger_FailureCodes(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(s *testServer)
		code      string
		retryable bool
	}{
		{
			name: "feed down",
			setup: func(s *testServer) {
				s.feed.EXPECT().Games(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil,
					contracts.Wrap(contracts.KindFeedUnavailable, "gamefeed.odds",
						errors.New("GET https://api.example.com/odds?apiKey="+oddsKey+": 503")))
			},
			code:      handlers.CodeExternalAPI,
			retryable: true,
		},
		{
			name: "recommender down",
			setup: func(s *testServer) {
				s.feed.EXPECT().Games(gomock.Any(), gomock.Any(), gomock.Any()).Return([]contracts.Game{{
					HomeTeam: "A Team", AwayTeam: "B Team", League: "NBA",
				}}, nil)
				s.rec.EXPECT().Recommend(gomock.Any(), gomock.Any()).Return(nil,
					contracts.E(contracts.KindRecommenderUnavailable, "recommender.remote", "timed out after 20s"))
			},
			code:      handlers.CodeRecommender,
			retryable: true,
		},
		{
			name: "selection unmatched",
			setup: func(s *testServer) {
				s.feed.EXPECT().Games(gomock.Any(), gomock.Any(), gomock.Any()).Return([]contracts.Game{{
					HomeTeam: "A Team", AwayTeam: "B Team", League: "NBA",
				}}, nil)
				s.rec.EXPECT().Recommend(gomock.Any(), gomock.Any()).Return(&contracts.Recommendation{
					Selection: "C Team ML", Odds: -110, Confidence: 70,
				}, nil)
			},
			code: handlers.CodeGameNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 100)
			tt.setup(s)

			resp, body := s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.retryable, body["retryable"] == true)
			assert.NotContains(t, body["error"], oddsKey)
		})
	}
}

func TestTrigger_NoViablePickIsSuccess(t *testing.T) {
	s := newTestServer(t, 100)
	s.feed.EXPECT().Games(gomock.Any(), gomock.Any(), gomock.Any()).Return([]contracts.Game{{
		HomeTeam: "A Team", AwayTeam: "B Team", League: "NBA",
		Odds: map[string]int{contracts.OddsHomeML: -450, contracts.OddsAwayML: 350},
	}}, nil)
	s.rec.EXPECT().Recommend(gomock.Any(), gomock.Any()).Return(nil,
		contracts.E(contracts.KindNoViablePick, "recommender.heuristic", "no candidate"))

	resp, body := s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no_viable_pick", body["status"])
	assert.NotContains(t, body, "pick_generated")
}

func TestPublicReads(t *testing.T) {
	s := newTestServer(t, 100)

	resp, body := s.do(t, http.MethodGet, "/today", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
	assert.Nil(t, body["pick"])
	perf := body["performance"].(map[string]interface{})
	assert.Equal(t, "0-0-0", perf["record"])

	resp, body = s.do(t, http.MethodGet, "/today?date=01/15/2024", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, handlers.CodeValidation, body["code"])
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, body = s.do(t, http.MethodGet, "/performance?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, handlers.CodeValidation, body["code"])
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, body = s.do(t, http.MethodGet, "/performance?include_chart=true", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{}, body["history"])
}

func TestAdmin_SettleLifecycle(t *testing.T) {
	s := newTestServer(t, 100)
	s.expectGenerate("Kansas City Chiefs ML")

	_, body := s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
	id := body["pick_generated"].(map[string]interface{})["id"].(string)

	// warm the public cache
	_, body = s.do(t, http.MethodGet, "/today", "", "")
	assert.Equal(t, "0-0-0", body["performance"].(map[string]interface{})["record"])

	resp, body := s.do(t, http.MethodGet, "/admin/unsettled", adminSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = s.do(t, http.MethodPost, "/admin/settle", adminSecret, `{"pickId":"`+id+`","result":"win","notes":"27-24"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "win", body["result"].(map[string]interface{})["outcome"])

	resp, body = s.do(t, http.MethodPost, "/admin/settle", adminSecret, `{"pickId":"`+id+`","result":"loss"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, handlers.CodeAlreadySettled, body["code"])

	// settlement invalidated the cached read
	_, body = s.do(t, http.MethodGet, "/today", "", "")
	perf := body["performance"].(map[string]interface{})
	assert.Equal(t, "1-0-0", perf["record"])
	assert.Equal(t, 100.0, perf["win_rate"])

	resp, body = s.do(t, http.MethodGet, "/admin/picks/"+id, adminSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["result"])

	_, body = s.do(t, http.MethodGet, "/admin/unsettled", adminSecret, "")
	assert.Equal(t, float64(0), body["count"])
}

func TestAdmin_SettleErrors(t *testing.T) {
	s := newTestServer(t, 100)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown pick", `{"pickId":"9b2f4c43-5a4c-4f6b-8d65-3a2f1f0d9c11","result":"win"}`, http.StatusNotFound, handlers.CodePickNotFound},
		{"bad outcome", `{"pickId":"9b2f4c43-5a4c-4f6b-8d65-3a2f1f0d9c11","result":"draw"}`, http.StatusBadRequest, handlers.CodeValidation},
		{"bad id", `{"pickId":"nope","result":"win"}`, http.StatusBadRequest, handlers.CodeValidation},
		{"bad json", `{"pickId":`, http.StatusBadRequest, handlers.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/admin/settle", adminSecret, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	resp, _ := s.do(t, http.MethodGet, "/admin/unsettled", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/admin/unsettled", cronSecret, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdmin_Recompute(t *testing.T) {
	s := newTestServer(t, 100)
	s.expectGenerate("Kansas City Chiefs ML")
	_, first := s.do(t, http.MethodPost, "/jobs/daily-pick", cronSecret, "")
	firstID := first["pick_generated"].(map[string]interface{})["id"]

	s.expectGenerate("Buffalo Bills ML")
	resp, body := s.do(t, http.MethodPost, "/admin/recompute", adminSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["replaced"])
	assert.Contains(t, body["message"], "recomputed and replaced")
	pick := body["pick"].(map[string]interface{})
	assert.NotEqual(t, firstID, pick["id"])
	assert.Equal(t, "Buffalo Bills ML", pick["selection"])

	resp, body = s.do(t, http.MethodPost, "/admin/recompute", adminSecret,
		`{"date":"`+s.engine.Today().AddDays(30).String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, handlers.CodeValidation, body["code"])
}

func TestAdmin_RateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, http.MethodGet, "/admin/unsettled", adminSecret, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodGet, "/admin/unsettled", adminSecret, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, handlers.CodeRateLimited, body["code"])

	// public reads are not limited
	resp, _ = s.do(t, http.MethodGet, "/today", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	l := newMemoryLimiter(2, time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	ok, remaining, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	now = now.Add(30 * time.Second)
	ok, _, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _, _ = l.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys are independent")

	// the first hit leaves the window
	now = now.Add(31 * time.Second)
	ok, _, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestClientKey(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		remote  string
		xff     []string
		trusted []netip.Prefix
		want    string
	}{
		{"socket address", "203.0.113.7:51234", nil, nil, "203.0.113.7"},
		{"forwarded header ignored without proxies", "203.0.113.7:51234", []string{"198.51.100.2"}, nil, "203.0.113.7"},
		{"untrusted peer cannot forward", "203.0.113.7:51234", []string{"198.51.100.2"}, proxies, "203.0.113.7"},
		{"trusted proxy", "10.0.0.5:443", []string{"198.51.100.2"}, proxies, "198.51.100.2"},
		{"right-most untrusted hop", "10.0.0.5:443", []string{"1.2.3.4, 198.51.100.2, 10.0.0.9"}, proxies, "198.51.100.2"},
		{"header lines joined", "10.0.0.5:443", []string{"1.2.3.4", "198.51.100.2"}, proxies, "198.51.100.2"},
		{"all hops trusted", "10.0.0.5:443", []string{"10.1.1.1, 10.2.2.2"}, proxies, "10.1.1.1"},
		{"trusted proxy without header", "10.0.0.5:443", nil, proxies, "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/admin/unsettled", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, clientKey(r, tt.trusted))
		})
	}
}

func TestAdmin_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t, 2)

	counts := map[int]int{}
	for i := 0; i < 6; i++ {
		req, err := http.NewRequest(http.MethodGet, s.url+"/admin/unsettled", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer wrong-secret")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		counts[resp.StatusCode]++
	}
	assert.Equal(t, 2, counts[http.StatusForbidden])
	assert.Equal(t, 4, counts[http.StatusTooManyRequests])
}

func TestCacheMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"implicit ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{}")) }, "public, max-age=300"},
		{"explicit ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }, "public, max-age=300"},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			handlers.RespondError(w, http.StatusInternalServerError, handlers.CodeDatabase, "Database error")
		}, "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			cacheMiddleware(5*time.Minute)(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/today", nil))
			assert.Equal(t, tt.want, rec.Header().Get("Cache-Control"))
		})
	}
}
