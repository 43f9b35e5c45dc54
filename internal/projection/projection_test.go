package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

func settledSeq(start string, outcomes ...contracts.Outcome) []contracts.SettledOutcome {
	d := contracts.MustParseDate(start)
	out := make([]contracts.SettledOutcome, 0, len(outcomes))
	for i, o := range outcomes {
		out = append(out, contracts.SettledOutcome{
			PickID:    uuid.New(),
			PickDate:  d.AddDays(i),
			League:    "NBA",
			Selection: "Boston Celtics ML",
			Odds:      -150,
			Outcome:   o,
			SettledAt: d.AddDays(i).Time().Add(26 * time.Hour),
		})
	}
	return out
}

const (
	W = contracts.OutcomeWin
	L = contracts.OutcomeLoss
	P = contracts.OutcomePush
)

func TestWinRate(t *testing.T) {
	tests := []struct {
		wins, losses int
		want         float64
	}{
		{0, 0, 0},
		{1, 0, 100},
		{0, 3, 0},
		{5, 1, 83.3},
		{2, 1, 66.7},
		{1, 2, 33.3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WinRate(tt.wins, tt.losses), "%d-%d", tt.wins, tt.losses)
	}
}

// W,W,L,W,W,W settles to 83.3% with a three-game win streak
func TestSummarize_StreakAndHistory(t *testing.T) {
	settled := settledSeq("2024-01-10", W, W, L, W, W, W)

	stats := Summarize(len(settled), settled)
	assert.Equal(t, 6, stats.TotalPicks)
	assert.Equal(t, 5, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 6, stats.Settled)
	assert.Equal(t, 83.3, stats.WinRate)
	assert.Equal(t, contracts.Streak{Kind: contracts.StreakWin, Count: 3}, stats.CurrentStreak)

	rows := History(settled)
	require.Len(t, rows, 6)

	wantRates := []float64{100, 100, 66.7, 75, 80, 83.3}
	for i, row := range rows {
		assert.Equal(t, wantRates[i], row.RunningWinRate, "row %d", i)
		assert.Equal(t, WinRate(row.RunningWins, row.RunningLosses), row.RunningWinRate)
		if i > 0 {
			assert.True(t, rows[i-1].PickDate.Before(row.PickDate), "ascending order")
		}
	}
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []contracts.Outcome
		want     contracts.Streak
	}{
		{"empty", nil, contracts.Streak{Kind: contracts.StreakNone}},
		{"single loss", []contracts.Outcome{L}, contracts.Streak{Kind: contracts.StreakLoss, Count: 1}},
		{"push newest", []contracts.Outcome{W, W, P}, contracts.Streak{Kind: contracts.StreakNone}},
		{"push breaks run", []contracts.Outcome{W, P, W, W}, contracts.Streak{Kind: contracts.StreakWin, Count: 2}},
		{"losses", []contracts.Outcome{W, L, L, L}, contracts.Streak{Kind: contracts.StreakLoss, Count: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.outcomes))
		})
	}
}

func TestStreakLength(t *testing.T) {
	outcomes := []contracts.Outcome{L, W, W}
	assert.Equal(t, 2, StreakLength(outcomes, contracts.StreakWin))
	assert.Equal(t, 0, StreakLength(outcomes, contracts.StreakLoss))
}

func TestPushesDoNotMoveWinRate(t *testing.T) {
	before := Summarize(2, settledSeq("2024-01-01", W, L))
	after := Summarize(3, settledSeq("2024-01-01", W, L, P))

	assert.Equal(t, before.WinRate, after.WinRate)
	assert.Equal(t, before.Settled+1, after.Settled)
	assert.Equal(t, 1, after.Pushes)
}

func TestSortAscending(t *testing.T) {
	settled := settledSeq("2024-01-01", W, L, P)
	settled[0], settled[2] = settled[2], settled[0]

	SortAscending(settled)
	assert.Equal(t, "2024-01-01", settled[0].PickDate.String())
	assert.Equal(t, "2024-01-03", settled[2].PickDate.String())
}

func TestChartAndPage(t *testing.T) {
	rows := History(settledSeq("2024-01-01", W, L, W, P))
	points := Chart(rows)

	require.Len(t, points, 4)
	assert.Equal(t, 2, points[3].CumulativeWins)
	assert.Equal(t, 1, points[3].CumulativePushes)
	assert.Equal(t, 66.7, points[3].WinRate)

	assert.Len(t, Page(rows, 2, 0), 2)
	assert.Len(t, Page(rows, 2, 3), 1)
	assert.Empty(t, Page(rows, 2, 10))
}
