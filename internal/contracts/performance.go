package contracts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StreakKind is the outcome a streak is counting
type StreakKind string

const (
	StreakWin  StreakKind = "win"
	StreakLoss StreakKind = "loss"
	StreakNone StreakKind = "none"
)

// Streak is the current run of identical outcomes
type Streak struct {
	Kind  StreakKind `json:"kind"`
	Count int        `json:"count"`
}

// Stats is the aggregate row of the performance projection
type Stats struct {
	TotalPicks    int     `json:"total_picks"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Pushes        int     `json:"pushes"`
	Settled       int     `json:"settled"`
	WinRate       float64 `json:"win_rate"`
	CurrentStreak Streak  `json:"current_streak"`
}

// Record formats W-L-P
func (s Stats) Record() string {
	return fmt.Sprintf("%d-%d-%d", s.Wins, s.Losses, s.Pushes)
}

// HistoryRow is one settled pick with running totals up to and including it
type HistoryRow struct {
	PickID         uuid.UUID `json:"pick_id"`
	PickDate       Date      `json:"pick_date"`
	League         string    `json:"league"`
	Selection      string    `json:"selection"`
	Odds           int       `json:"odds"`
	Confidence     float64   `json:"confidence"`
	Outcome        Outcome   `json:"outcome"`
	SettledAt      time.Time `json:"settled_at"`
	RunningWins    int       `json:"running_wins"`
	RunningLosses  int       `json:"running_losses"`
	RunningPushes  int       `json:"running_pushes"`
	RunningWinRate float64   `json:"running_win_rate"`
}

// ChartPoint is one point of the cumulative performance chart
type ChartPoint struct {
	Date             Date    `json:"date"`
	CumulativeWins   int     `json:"cumulative_wins"`
	CumulativeLosses int     `json:"cumulative_losses"`
	CumulativePushes int     `json:"cumulative_pushes"`
	WinRate          float64 `json:"win_rate"`
}

// SettledOutcome is the minimal input the projection needs per settled pick
type SettledOutcome struct {
	PickID     uuid.UUID
	PickDate   Date
	League     string
	Selection  string
	Odds       int
	Confidence float64
	Outcome    Outcome
	SettledAt  time.Time
}
