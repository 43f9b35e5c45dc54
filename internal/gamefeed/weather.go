package gamefeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

// outdoorLeagues get a weather forecast attached
var outdoorLeagues = map[string]bool{
	"NFL":   true,
	"NCAAF": true,
	"MLB":   true,
}

const mmPerInch = 25.4

// weatherResponse is the subset of the OpenWeather current-weather payload we read
type weatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain    map[string]float64 `json:"rain"`
	Snow    map[string]float64 `json:"snow"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// teamCity drops the nickname: "Kansas City Chiefs" → "Kansas City"
func teamCity(team string) string {
	fields := strings.Fields(team)
	if len(fields) <= 1 {
		return team
	}
	return strings.Join(fields[:len(fields)-1], " ")
}

// fetchWeather 홈팀 도시 날씨 조회 (imperial units)
func (f *Feed) fetchWeather(ctx context.Context, city string) (*contracts.Weather, error) {
	return f.weatherBreaker.Execute(func() (*contracts.Weather, error) {
		params := url.Values{}
		params.Set("q", city)
		params.Set("appid", f.weatherAPIKey)
		params.Set("units", "imperial")

		var resp weatherResponse
		if err := f.httpClient.GetJSON(ctx, fmt.Sprintf("%s/weather?%s", f.weatherBaseURL, params.Encode()), &resp); err != nil {
			return nil, err
		}

		w := &contracts.Weather{
			TemperatureF:    resp.Main.Temp,
			WindMPH:         resp.Wind.Speed,
			PrecipitationIn: (resp.Rain["1h"] + resp.Snow["1h"]) / mmPerInch,
		}
		if len(resp.Weather) > 0 {
			w.Conditions = resp.Weather[0].Description
		}
		return w, nil
	})
}

// enrichWeather attaches weather to outdoor games. Failures are logged only.
func (f *Feed) enrichWeather(ctx context.Context, games []contracts.Game) {
	if f.weatherAPIKey == "" {
		return
	}

	byCity := make(map[string]*contracts.Weather)
	for i := range games {
		g := &games[i]
		if !outdoorLeagues[g.League] {
			continue
		}

		city := teamCity(g.HomeTeam)
		w, cached := byCity[city]
		if !cached {
			var err error
			w, err = f.fetchWeather(ctx, city)
			f.metrics.Upstream("weather", upstreamResult(err))
			if err != nil {
				f.logger.WithError(err).WithField("city", city).Warn("Weather enrichment failed")
			}
			byCity[city] = w
		}
		if w != nil {
			g.Weather = w
			g.Venue = city
		}
	}
}
