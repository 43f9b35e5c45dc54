package gamefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/config"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/httputil"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

func event(id, home, away, commence string, homeML, awayML float64) map[string]interface{} {
	return map[string]interface{}{
		"id":            id,
		"sport_key":     "americanfootball_nfl",
		"commence_time": commence,
		"home_team":     home,
		"away_team":     away,
		"bookmakers": []interface{}{
			map[string]interface{}{
				"key": "draftkings",
				"markets": []interface{}{
					map[string]interface{}{
						"key": "h2h",
						"outcomes": []interface{}{
							map[string]interface{}{"name": home, "price": homeML},
							map[string]interface{}{"name": away, "price": awayML},
						},
					},
					map[string]interface{}{
						"key": "totals",
						"outcomes": []interface{}{
							map[string]interface{}{"name": "Over", "price": -110, "point": 47.5},
							map[string]interface{}{"name": "Under", "price": -110, "point": 47.5},
						},
					},
				},
			},
		},
	}
}

func testConfig(baseURL string, leagues ...string) *config.Config {
	cfg := &config.Config{}
	cfg.OddsAPI.APIKey = "test-key"
	cfg.OddsAPI.BaseURL = baseURL
	cfg.OddsAPI.Regions = "us"
	cfg.OddsAPI.Leagues = leagues
	cfg.Weather.BaseURL = baseURL
	return cfg
}

func newTestFeed(cfg *config.Config) *Feed {
	return NewFeed(cfg, httputil.New(logger.Nop()).DisableRetry(), logger.Nop(), nil)
}

func TestGames_ParsesAndFiltersWindow(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/americanfootball_nfl/odds", r.URL.Path)
		gotQuery.Store(r.URL.Query())
		_ = json.NewEncoder(w).Encode([]interface{}{
			event("a", "Buffalo Bills", "Kansas City Chiefs", "2024-01-15T18:00:00Z", -120, 100),
			// outside the UTC window, must be dropped
			event("b", "Dallas Cowboys", "Green Bay Packers", "2024-01-16T01:00:00Z", -150, 130),
		})
	}))
	defer srv.Close()

	feed := newTestFeed(testConfig(srv.URL, "NFL"))
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	games, err := feed.Games(context.Background(), contracts.MustParseDate("2024-01-15"), denver)
	require.NoError(t, err)
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, "NFL", g.League)
	assert.Equal(t, -120, g.Odds[contracts.OddsHomeML])
	assert.Equal(t, 100, g.Odds[contracts.OddsAwayML])
	assert.Equal(t, -110, g.Odds[contracts.OddsOver])
	assert.Equal(t, 47.5, g.Lines[contracts.LineTotal])

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "2024-01-15T00:00:00Z", q.Get("commenceTimeFrom"))
	assert.Equal(t, "2024-01-15T23:59:59Z", q.Get("commenceTimeTo"))
	assert.Equal(t, "american", q.Get("oddsFormat"))
	assert.Equal(t, "h2h,spreads,totals", q.Get("markets"))
}

func TestGames_EmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	games, err := newTestFeed(testConfig(srv.URL, "NBA")).Games(context.Background(), contracts.MustParseDate("2024-07-04"), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestGames_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "basketball_nba") {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]interface{}{
			event("a", "Buffalo Bills", "Kansas City Chiefs", "2024-01-15T18:00:00Z", -120, 100),
		})
	}))
	defer srv.Close()

	games, err := newTestFeed(testConfig(srv.URL, "NFL", "NBA")).Games(context.Background(), contracts.MustParseDate("2024-01-15"), time.UTC)
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestGames_AllFailIsFeedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFeed(testConfig(srv.URL, "NFL", "NBA")).Games(context.Background(), contracts.MustParseDate("2024-01-15"), time.UTC)
	assert.True(t, contracts.IsKind(err, contracts.KindFeedUnavailable), "got %v", err)
	assert.True(t, contracts.IsRetryable(err))
}

func TestGames_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	feed := newTestFeed(testConfig(srv.URL, "NFL"))
	date := contracts.MustParseDate("2024-01-15")

	for i := 0; i < breakerFailures; i++ {
		_, err := feed.Games(context.Background(), date, time.UTC)
		require.Error(t, err)
	}
	require.Equal(t, int32(breakerFailures), calls.Load())

	// open: rejected without reaching the upstream
	_, err := feed.Games(context.Background(), date, time.UTC)
	assert.True(t, contracts.IsKind(err, contracts.KindFeedUnavailable))
	assert.Equal(t, int32(breakerFailures), calls.Load())
}

func TestGames_MissingKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0", "NFL")
	cfg.OddsAPI.APIKey = ""

	_, err := newTestFeed(cfg).Games(context.Background(), contracts.MustParseDate("2024-01-15"), time.UTC)
	assert.True(t, contracts.IsKind(err, contracts.KindConfig))
}

func TestGames_WeatherAndInjuryEnrichment(t *testing.T) {
	injuryHTML := `
		<html><body>
		<table class="injury-report">
			<caption>Kansas City Chiefs</caption>
			<tr><th>Player</th><th>Pos</th><th>Status</th><th>Impact</th></tr>
			<tr><td>Travis Kelce</td><td>TE</td><td>Questionable</td><td>High</td></tr>
			<tr><td>Backup Guard</td><td>OL</td><td>Probable</td></tr>
		</table>
		<table class="injury-report">
			<caption>Miami Dolphins</caption>
			<tr><td>Someone</td><td>WR</td><td>Out</td><td>Low</td></tr>
		</table>
		</body></html>`

	var weatherCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather":
			weatherCalls.Add(1)
			assert.Equal(t, "Buffalo", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"main":{"temp":18.5},"wind":{"speed":16},"rain":{"1h":2.54},"weather":[{"description":"light snow"}]}`))
		case "/injuries":
			_, _ = w.Write([]byte(injuryHTML))
		default:
			_ = json.NewEncoder(w).Encode([]interface{}{
				event("a", "Buffalo Bills", "Kansas City Chiefs", "2024-01-15T18:00:00Z", -120, 100),
			})
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, "NFL")
	cfg.Weather.APIKey = "wkey"
	cfg.Injuries.ReportURL = srv.URL + "/injuries"

	games, err := newTestFeed(cfg).Games(context.Background(), contracts.MustParseDate("2024-01-15"), time.UTC)
	require.NoError(t, err)
	require.Len(t, games, 1)

	g := games[0]
	require.NotNil(t, g.Weather)
	assert.Equal(t, 18.5, g.Weather.TemperatureF)
	assert.Equal(t, 16.0, g.Weather.WindMPH)
	assert.InDelta(t, 0.1, g.Weather.PrecipitationIn, 1e-9)
	assert.Equal(t, "Buffalo", g.Venue)
	assert.Equal(t, int32(1), weatherCalls.Load())

	require.Len(t, g.Injuries, 2)
	assert.Equal(t, "Travis Kelce", g.Injuries[0].Player)
	assert.Equal(t, "High", g.Injuries[0].Impact)
	assert.Equal(t, "Medium", g.Injuries[1].Impact)
}

func TestGames_EnrichmentFailureIsIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/weather" || r.URL.Path == "/injuries" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]interface{}{
			event("a", "Buffalo Bills", "Kansas City Chiefs", "2024-01-15T18:00:00Z", -120, 100),
		})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, "NFL")
	cfg.Weather.APIKey = "wkey"
	cfg.Injuries.ReportURL = srv.URL + "/injuries"

	games, err := newTestFeed(cfg).Games(context.Background(), contracts.MustParseDate("2024-01-15"), time.UTC)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Nil(t, games[0].Weather)
	assert.Empty(t, games[0].Injuries)
}

func TestTeamCity(t *testing.T) {
	assert.Equal(t, "Kansas City", teamCity("Kansas City Chiefs"))
	assert.Equal(t, "Green Bay", teamCity("Green Bay Packers"))
	assert.Equal(t, "Seattle", teamCity("Seattle"))
}

func TestParseInjuryHTML_SkipsUnknownStatus(t *testing.T) {
	html := `<table class="injury-report" data-team="Boston Celtics">
		<tr><td>Player One</td><td>G</td><td>Rest</td></tr>
		<tr><td>Player Two</td><td>F</td><td>DTD</td></tr>
	</table>`

	injuries := parseInjuryHTML(html)
	require.Len(t, injuries, 1)
	assert.Equal(t, "Boston Celtics", injuries[0].Team)
	assert.Equal(t, "Questionable", injuries[0].Status)
}
