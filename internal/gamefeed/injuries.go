package gamefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

// fetchInjuries 부상자 리포트 HTML 조회 및 파싱
func (f *Feed) fetchInjuries(ctx context.Context) ([]contracts.Injury, error) {
	return f.injuryBreaker.Execute(func() ([]contracts.Injury, error) {
		resp, err := f.httpClient.Get(ctx, f.injuryURL)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return parseInjuryHTML(string(body)), nil
	})
}

// parseInjuryHTML reads an injury report page. Each team is one
// table.injury-report whose caption is the team name; rows are
// player, position, status and an optional impact column.
func parseInjuryHTML(html string) []contracts.Injury {
	var injuries []contracts.Injury

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return injuries
	}

	doc.Find("table.injury-report").Each(func(_ int, table *goquery.Selection) {
		team := strings.TrimSpace(table.Find("caption").First().Text())
		if team == "" {
			team = strings.TrimSpace(table.AttrOr("data-team", ""))
		}
		if team == "" {
			return
		}

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}

			player := strings.TrimSpace(cells.Eq(0).Text())
			status := normalizeStatus(cells.Eq(2).Text())
			if player == "" || status == "" {
				return
			}

			impact := "Medium"
			if cells.Length() >= 4 {
				if v := normalizeImpact(cells.Eq(3).Text()); v != "" {
					impact = v
				}
			}

			injuries = append(injuries, contracts.Injury{
				Team:   team,
				Player: player,
				Status: status,
				Impact: impact,
			})
		})
	})

	return injuries
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "o", "ir", "injured reserve":
		return "Out"
	case "doubtful", "d":
		return "Doubtful"
	case "questionable", "q", "day-to-day", "dtd":
		return "Questionable"
	case "probable", "p":
		return "Probable"
	}
	return ""
}

func normalizeImpact(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	}
	return ""
}

// enrichInjuries attaches report entries of either team. Failures are logged only.
func (f *Feed) enrichInjuries(ctx context.Context, games []contracts.Game) {
	if f.injuryURL == "" || len(games) == 0 {
		return
	}

	report, err := f.fetchInjuries(ctx)
	f.metrics.Upstream("injuries", upstreamResult(err))
	if err != nil {
		f.logger.WithError(err).Warn("Injury enrichment failed")
		return
	}

	byTeam := make(map[string][]contracts.Injury)
	for _, inj := range report {
		key := strings.ToLower(inj.Team)
		byTeam[key] = append(byTeam[key], inj)
	}

	for i := range games {
		g := &games[i]
		g.Injuries = append(g.Injuries, byTeam[strings.ToLower(g.HomeTeam)]...)
		g.Injuries = append(g.Injuries, byTeam[strings.ToLower(g.AwayTeam)]...)
	}
}
