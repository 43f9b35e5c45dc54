package gamefeed

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

// sportKeys maps league tags to odds provider sport keys
var sportKeys = map[string]string{
	"NFL":   "americanfootball_nfl",
	"NCAAF": "americanfootball_ncaaf",
	"NBA":   "basketball_nba",
	"NCAAB": "basketball_ncaab",
	"MLB":   "baseball_mlb",
	"NHL":   "icehockey_nhl",
}

// SportKey returns the provider sport key of league
func SportKey(league string) (string, bool) {
	key, ok := sportKeys[strings.ToUpper(league)]
	return key, ok
}

// oddsEvent is one event of the odds provider response
type oddsEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	CommenceTime time.Time       `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []oddsBookmaker `json:"bookmakers"`
}

type oddsBookmaker struct {
	Key     string       `json:"key"`
	Title   string       `json:"title"`
	Markets []oddsMarket `json:"markets"`
}

type oddsMarket struct {
	Key      string        `json:"key"` // h2h, spreads, totals
	Outcomes []oddsOutcome `json:"outcomes"`
}

type oddsOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// oddsURL builds the odds request for one league and UTC window
func (f *Feed) oddsURL(sportKey string, start, end time.Time) string {
	params := url.Values{}
	params.Set("apiKey", f.oddsAPIKey)
	params.Set("regions", f.regions)
	params.Set("markets", "h2h,spreads,totals")
	params.Set("oddsFormat", "american")
	params.Set("dateFormat", "iso")
	params.Set("commenceTimeFrom", start.UTC().Format(time.RFC3339))
	// provider bound is inclusive; the exclusive end is enforced in toGames
	params.Set("commenceTimeTo", end.Add(-time.Second).UTC().Format(time.RFC3339))

	return fmt.Sprintf("%s/sports/%s/odds?%s", f.oddsBaseURL, sportKey, params.Encode())
}

// fetchLeague 리그별 경기 배당 조회
func (f *Feed) fetchLeague(ctx context.Context, sportKey string, start, end time.Time) ([]oddsEvent, error) {
	return f.oddsBreaker.Execute(func() ([]oddsEvent, error) {
		var events []oddsEvent
		if err := f.httpClient.GetJSON(ctx, f.oddsURL(sportKey, start, end), &events); err != nil {
			return nil, err
		}
		return events, nil
	})
}

// toGames converts provider events, dropping anything outside [start, end)
func toGames(league string, events []oddsEvent, start, end time.Time) []contracts.Game {
	games := make([]contracts.Game, 0, len(events))
	for _, ev := range events {
		ct := ev.CommenceTime.UTC()
		if ct.Before(start) || !ct.Before(end) {
			continue
		}
		if ev.HomeTeam == "" || ev.AwayTeam == "" {
			continue
		}

		g := contracts.Game{
			ID:        ev.ID,
			HomeTeam:  ev.HomeTeam,
			AwayTeam:  ev.AwayTeam,
			League:    league,
			StartTime: ct,
			Odds:      make(map[string]int),
			Lines:     make(map[string]float64),
		}
		applyMarkets(&g, ev.Bookmakers)

		// a game without moneyline prices is not a candidate
		if _, ok := g.Odds[contracts.OddsHomeML]; !ok {
			continue
		}
		if _, ok := g.Odds[contracts.OddsAwayML]; !ok {
			continue
		}
		games = append(games, g)
	}
	return games
}

// applyMarkets takes each market from the first bookmaker that carries it
func applyMarkets(g *contracts.Game, bookmakers []oddsBookmaker) {
	seen := make(map[string]bool)

	for _, bm := range bookmakers {
		for _, mk := range bm.Markets {
			if seen[mk.Key] {
				continue
			}

			switch mk.Key {
			case "h2h":
				for _, o := range mk.Outcomes {
					switch o.Name {
					case g.HomeTeam:
						g.Odds[contracts.OddsHomeML] = american(o.Price)
					case g.AwayTeam:
						g.Odds[contracts.OddsAwayML] = american(o.Price)
					}
				}
			case "spreads":
				for _, o := range mk.Outcomes {
					switch o.Name {
					case g.HomeTeam:
						g.Odds[contracts.OddsHomeSpread] = american(o.Price)
						if o.Point != nil {
							g.Lines[contracts.LineSpread] = *o.Point
						}
					case g.AwayTeam:
						g.Odds[contracts.OddsAwaySpread] = american(o.Price)
					}
				}
			case "totals":
				for _, o := range mk.Outcomes {
					switch strings.ToLower(o.Name) {
					case "over":
						g.Odds[contracts.OddsOver] = american(o.Price)
						if o.Point != nil {
							g.Lines[contracts.LineTotal] = *o.Point
						}
					case "under":
						g.Odds[contracts.OddsUnder] = american(o.Price)
					}
				}
			default:
				continue
			}
			seen[mk.Key] = true
		}
	}
}

func american(price float64) int {
	return int(math.Round(price))
}
