package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

func newPick(date string) contracts.NewPick {
	return contracts.NewPick{
		PickDate:   contracts.MustParseDate(date),
		League:     "NBA",
		HomeTeam:   "Boston Celtics",
		AwayTeam:   "Miami Heat",
		Selection:  "Boston Celtics ML",
		Odds:       -150,
		Confidence: 68,
		Rationale:  contracts.Rationale{TopFactors: []string{"home court"}, Reasoning: "rest edge"},
	}
}

func TestMemory_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p, err := m.InsertPick(ctx, newPick("2024-01-15"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, contracts.MarketMoneyline, p.Market)

	got, err := m.GetPick(ctx, contracts.MustParseDate("2024-01-15"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)

	missing, err := m.GetPick(ctx, contracts.MustParseDate("2024-01-16"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := m.PickExists(ctx, contracts.MustParseDate("2024-01-15"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemory_DuplicateDate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.InsertPick(ctx, newPick("2024-01-15"))
	require.NoError(t, err)

	_, err = m.InsertPick(ctx, newPick("2024-01-15"))
	assert.True(t, contracts.IsKind(err, contracts.KindDuplicateDate))
}

func TestMemory_InsertRejectsInvalid(t *testing.T) {
	np := newPick("2024-01-15")
	np.Odds = 50

	_, err := NewMemory().InsertPick(context.Background(), np)
	assert.True(t, contracts.IsKind(err, contracts.KindValidation))
}

func TestMemory_SettleOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p, err := m.InsertPick(ctx, newPick("2024-01-15"))
	require.NoError(t, err)

	notes := "closed 112-104"
	res, err := m.SettlePick(ctx, p.ID, contracts.OutcomeWin, &notes)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.PickID)
	assert.Equal(t, contracts.OutcomeWin, res.Outcome)

	_, err = m.SettlePick(ctx, p.ID, contracts.OutcomeLoss, nil)
	assert.True(t, contracts.IsKind(err, contracts.KindAlreadySettled))

	_, err = m.SettlePick(ctx, uuid.New(), contracts.OutcomeWin, nil)
	assert.True(t, contracts.IsKind(err, contracts.KindNotFound))

	_, err = m.SettlePick(ctx, p.ID, contracts.Outcome("void"), nil)
	assert.True(t, contracts.IsKind(err, contracts.KindValidation))

	gotPick, gotRes, err := m.GetPickByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, gotPick.ID)
	require.NotNil(t, gotRes)
	assert.Equal(t, notes, *gotRes.Notes)
}

func TestMemory_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p, err := m.InsertPick(ctx, newPick("2024-01-15"))
	require.NoError(t, err)
	_, err = m.SettlePick(ctx, p.ID, contracts.OutcomeLoss, nil)
	require.NoError(t, err)

	require.NoError(t, m.DeletePick(ctx, p.ID))

	_, _, err = m.GetPickByID(ctx, p.ID)
	assert.True(t, contracts.IsKind(err, contracts.KindNotFound))

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Settled)

	// the date is free again
	_, err = m.InsertPick(ctx, newPick("2024-01-15"))
	assert.NoError(t, err)

	assert.True(t, contracts.IsKind(m.DeletePick(ctx, uuid.New()), contracts.KindNotFound))
}

func TestMemory_UnsettledNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, d := range []string{"2024-01-10", "2024-01-12", "2024-01-11"} {
		_, err := m.InsertPick(ctx, newPick(d))
		require.NoError(t, err)
	}
	settled, err := m.GetPick(ctx, contracts.MustParseDate("2024-01-11"))
	require.NoError(t, err)
	_, err = m.SettlePick(ctx, settled.ID, contracts.OutcomePush, nil)
	require.NoError(t, err)

	unsettled, err := m.GetUnsettled(ctx)
	require.NoError(t, err)
	require.Len(t, unsettled, 2)
	assert.Equal(t, "2024-01-12", unsettled[0].PickDate.String())
	assert.Equal(t, "2024-01-10", unsettled[1].PickDate.String())
}

func TestMemory_Projection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	start := contracts.MustParseDate("2024-01-10")
	outcomes := []contracts.Outcome{
		contracts.OutcomeWin, contracts.OutcomeWin, contracts.OutcomeLoss,
		contracts.OutcomeWin, contracts.OutcomeWin, contracts.OutcomeWin,
	}
	for i, o := range outcomes {
		p, err := m.InsertPick(ctx, newPick(start.AddDays(i).String()))
		require.NoError(t, err)
		_, err = m.SettlePick(ctx, p.ID, o, nil)
		require.NoError(t, err)
	}
	// one unsettled pick counts toward total only
	_, err := m.InsertPick(ctx, newPick(start.AddDays(6).String()))
	require.NoError(t, err)
	require.NoError(t, m.RefreshPerformance(ctx))

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalPicks)
	assert.Equal(t, 6, stats.Settled)
	assert.Equal(t, 83.3, stats.WinRate)
	assert.Equal(t, contracts.Streak{Kind: contracts.StreakWin, Count: 3}, stats.CurrentStreak)

	wins, err := m.GetStreak(ctx, contracts.StreakWin)
	require.NoError(t, err)
	assert.Equal(t, 3, wins)
	losses, err := m.GetStreak(ctx, contracts.StreakLoss)
	require.NoError(t, err)
	assert.Equal(t, 0, losses)

	history, err := m.GetHistory(ctx, 30, 0)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, 100.0, history[0].RunningWinRate)
	assert.Equal(t, 66.7, history[2].RunningWinRate)
	assert.Equal(t, 83.3, history[5].RunningWinRate)

	page, err := m.GetHistory(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, history[4].PickID, page[0].PickID)
}
