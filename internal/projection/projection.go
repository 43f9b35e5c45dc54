// Package projection derives performance statistics from settled picks.
// Everything here is pure; the stores feed it rows and persist nothing.
package projection

import (
	"math"
	"sort"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

// WinRate returns wins/(wins+losses) as a percentage rounded to one
// decimal. Pushes never enter the formula; no decisions yields 0.
// ⭐ SSOT: 승률 계산은 여기서만
func WinRate(wins, losses int) float64 {
	decided := wins + losses
	if decided == 0 {
		return 0
	}
	return round1(100 * float64(wins) / float64(decided))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SortAscending orders settled outcomes by pick date, oldest first
func SortAscending(settled []contracts.SettledOutcome) {
	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].PickDate.Before(settled[j].PickDate)
	})
}

// CurrentStreak scans from the newest outcome toward older ones.
// outcomes must be ordered oldest first. A push, or nothing settled, is {none,0}.
func CurrentStreak(outcomes []contracts.Outcome) contracts.Streak {
	none := contracts.Streak{Kind: contracts.StreakNone, Count: 0}
	if len(outcomes) == 0 {
		return none
	}

	newest := outcomes[len(outcomes)-1]
	var kind contracts.StreakKind
	switch newest {
	case contracts.OutcomeWin:
		kind = contracts.StreakWin
	case contracts.OutcomeLoss:
		kind = contracts.StreakLoss
	default:
		return none
	}

	count := 0
	for i := len(outcomes) - 1; i >= 0 && outcomes[i] == newest; i-- {
		count++
	}
	return contracts.Streak{Kind: kind, Count: count}
}

// StreakLength is the current run of kind; 0 when the newest outcome differs
func StreakLength(outcomes []contracts.Outcome, kind contracts.StreakKind) int {
	s := CurrentStreak(outcomes)
	if s.Kind != kind {
		return 0
	}
	return s.Count
}

// Summarize builds the aggregate row. totalPicks counts unsettled picks too;
// settled must be ordered oldest first.
func Summarize(totalPicks int, settled []contracts.SettledOutcome) contracts.Stats {
	stats := contracts.Stats{TotalPicks: totalPicks}
	outcomes := make([]contracts.Outcome, 0, len(settled))

	for _, s := range settled {
		switch s.Outcome {
		case contracts.OutcomeWin:
			stats.Wins++
		case contracts.OutcomeLoss:
			stats.Losses++
		case contracts.OutcomePush:
			stats.Pushes++
		default:
			continue
		}
		stats.Settled++
		outcomes = append(outcomes, s.Outcome)
	}

	stats.WinRate = WinRate(stats.Wins, stats.Losses)
	stats.CurrentStreak = CurrentStreak(outcomes)
	return stats
}

// History produces one row per settled pick with running totals over the
// prefix ending at that pick. settled must be ordered oldest first.
func History(settled []contracts.SettledOutcome) []contracts.HistoryRow {
	rows := make([]contracts.HistoryRow, 0, len(settled))

	var wins, losses, pushes int
	for _, s := range settled {
		switch s.Outcome {
		case contracts.OutcomeWin:
			wins++
		case contracts.OutcomeLoss:
			losses++
		case contracts.OutcomePush:
			pushes++
		default:
			continue
		}

		rows = append(rows, contracts.HistoryRow{
			PickID:         s.PickID,
			PickDate:       s.PickDate,
			League:         s.League,
			Selection:      s.Selection,
			Odds:           s.Odds,
			Confidence:     s.Confidence,
			Outcome:        s.Outcome,
			SettledAt:      s.SettledAt,
			RunningWins:    wins,
			RunningLosses:  losses,
			RunningPushes:  pushes,
			RunningWinRate: WinRate(wins, losses),
		})
	}
	return rows
}

// Chart maps history rows to cumulative chart points
func Chart(rows []contracts.HistoryRow) []contracts.ChartPoint {
	points := make([]contracts.ChartPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, contracts.ChartPoint{
			Date:             r.PickDate,
			CumulativeWins:   r.RunningWins,
			CumulativeLosses: r.RunningLosses,
			CumulativePushes: r.RunningPushes,
			WinRate:          r.RunningWinRate,
		})
	}
	return points
}

// Page slices rows by offset and limit without copying
func Page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
