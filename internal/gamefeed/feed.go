// Package gamefeed collects the candidate games of a date from the odds
// provider and enriches them with weather and injury context.
package gamefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/config"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/httputil"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// Feed implements contracts.GameFeed
// ⭐ SSOT: 외부 경기/배당/날씨/부상 API 호출은 이 패키지에서만
type Feed struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics

	oddsAPIKey  string
	oddsBaseURL string
	regions     string
	leagues     []string

	weatherAPIKey  string
	weatherBaseURL string
	injuryURL      string

	oddsBreaker    *gobreaker.CircuitBreaker[[]oddsEvent]
	weatherBreaker *gobreaker.CircuitBreaker[*contracts.Weather]
	injuryBreaker  *gobreaker.CircuitBreaker[[]contracts.Injury]
}

var _ contracts.GameFeed = (*Feed)(nil)

// NewFeed creates a feed over the configured providers
func NewFeed(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger, m *metrics.Metrics) *Feed {
	return &Feed{
		httpClient:     httpClient,
		logger:         log,
		metrics:        m,
		oddsAPIKey:     cfg.OddsAPI.APIKey,
		oddsBaseURL:    strings.TrimRight(cfg.OddsAPI.BaseURL, "/"),
		regions:        cfg.OddsAPI.Regions,
		leagues:        cfg.OddsAPI.Leagues,
		weatherAPIKey:  cfg.Weather.APIKey,
		weatherBaseURL: strings.TrimRight(cfg.Weather.BaseURL, "/"),
		injuryURL:      cfg.Injuries.ReportURL,
		oddsBreaker:    newBreaker[[]oddsEvent]("odds", log, m),
		weatherBreaker: newBreaker[*contracts.Weather]("weather", log, m),
		injuryBreaker:  newBreaker[[]contracts.Injury]("injuries", log, m),
	}
}

// Games returns every configured league's games in the UTC window of date.
// All leagues failing is feed_unavailable; a partial set is returned as-is.
func (f *Feed) Games(ctx context.Context, date contracts.Date, loc *time.Location) ([]contracts.Game, error) {
	const op = "gamefeed.games"

	if f.oddsAPIKey == "" {
		return nil, contracts.E(contracts.KindConfig, op, "ODDS_API_KEY is not configured")
	}

	start, end := date.UTCWindow(loc)
	games := make([]contracts.Game, 0)

	var (
		failed  []string
		lastErr error
	)
	for _, league := range f.leagues {
		sportKey, ok := SportKey(league)
		if !ok {
			f.logger.WithField("league", league).Warn("Unknown league skipped")
			continue
		}

		events, err := f.fetchLeague(ctx, sportKey, start, end)
		f.metrics.Upstream("odds", upstreamResult(err))
		if err != nil {
			failed = append(failed, league)
			lastErr = err
			f.logger.WithError(err).WithFields(map[string]interface{}{
				"league":  league,
				"date":    date.String(),
				"breaker": f.oddsBreaker.State().String(),
			}).Warn("League odds fetch failed")
			continue
		}

		games = append(games, toGames(strings.ToUpper(league), events, start, end)...)
	}

	if len(failed) > 0 && len(failed) == f.attemptedLeagues() {
		return nil, contracts.Wrap(contracts.KindFeedUnavailable, op,
			fmt.Errorf("all leagues failed (%s): %w", strings.Join(failed, ","), lastErr))
	}

	f.enrichWeather(ctx, games)
	f.enrichInjuries(ctx, games)

	f.logger.WithFields(map[string]interface{}{
		"date":           date.String(),
		"window_start":   start.Format(time.RFC3339),
		"games":          len(games),
		"failed_leagues": failed,
	}).Info("Fetched candidate games")

	return games, nil
}

func (f *Feed) attemptedLeagues() int {
	n := 0
	for _, league := range f.leagues {
		if _, ok := SportKey(league); ok {
			n++
		}
	}
	return n
}
