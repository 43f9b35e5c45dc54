package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/projection"
)

// Memory is an in-process PickStore. It enforces the same invariants as
// the Postgres schema and computes the projection on read, so refresh is a
// no-op. Used for STORE_DRIVER=memory and in tests.
type Memory struct {
	mu      sync.RWMutex
	picks   map[uuid.UUID]contracts.Pick
	byDate  map[contracts.Date]uuid.UUID
	results map[uuid.UUID]contracts.Result // keyed by pick id
	now     func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		picks:   make(map[uuid.UUID]contracts.Pick),
		byDate:  make(map[contracts.Date]uuid.UUID),
		results: make(map[uuid.UUID]contracts.Result),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ contracts.PickStore = (*Memory)(nil)

// GetPick returns the pick for date or nil
func (m *Memory) GetPick(ctx context.Context, date contracts.Date) (*contracts.Pick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byDate[date]
	if !ok {
		return nil, nil
	}
	p := m.picks[id]
	return &p, nil
}

// PickExists reports whether date already has a pick
func (m *Memory) PickExists(ctx context.Context, date contracts.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byDate[date]
	return ok, nil
}

// GetPickByID returns a pick and its result, if settled
func (m *Memory) GetPickByID(ctx context.Context, id uuid.UUID) (*contracts.Pick, *contracts.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.picks[id]
	if !ok {
		return nil, nil, contracts.NotFound("store.get_pick_by_id", fmt.Sprintf("pick %s not found", id))
	}
	if r, settled := m.results[id]; settled {
		return &p, &r, nil
	}
	return &p, nil, nil
}

// InsertPick validates and stores a new pick
func (m *Memory) InsertPick(ctx context.Context, np contracts.NewPick) (*contracts.Pick, error) {
	const op = "store.insert_pick"

	np = np.Normalize()
	if err := np.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byDate[np.PickDate]; exists {
		return nil, contracts.E(contracts.KindDuplicateDate, op,
			fmt.Sprintf("a pick already exists for %s", np.PickDate))
	}

	now := m.now()
	p := contracts.Pick{
		ID:            uuid.New(),
		PickDate:      np.PickDate,
		League:        np.League,
		HomeTeam:      np.HomeTeam,
		AwayTeam:      np.AwayTeam,
		Market:        np.Market,
		Selection:     np.Selection,
		Odds:          np.Odds,
		Confidence:    np.Confidence,
		Rationale:     np.Rationale,
		FeaturesUsed:  np.FeaturesUsed,
		ExpectedValue: np.ExpectedValue,
		ModelVersion:  np.ModelVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.picks[p.ID] = p
	m.byDate[p.PickDate] = p.ID
	return &p, nil
}

// DeletePick removes a pick and its result
func (m *Memory) DeletePick(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.picks[id]
	if !ok {
		return contracts.NotFound("store.delete_pick", fmt.Sprintf("pick %s not found", id))
	}

	delete(m.picks, id)
	delete(m.byDate, p.PickDate)
	delete(m.results, id)
	return nil
}

// SettlePick attaches the one and only result of a pick
func (m *Memory) SettlePick(ctx context.Context, pickID uuid.UUID, outcome contracts.Outcome, notes *string) (*contracts.Result, error) {
	const op = "store.settle_pick"

	if _, err := contracts.ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.picks[pickID]; !ok {
		return nil, contracts.NotFound(op, fmt.Sprintf("pick %s not found", pickID))
	}
	if _, settled := m.results[pickID]; settled {
		return nil, contracts.E(contracts.KindAlreadySettled, op, fmt.Sprintf("pick %s is already settled", pickID))
	}

	r := contracts.Result{
		ID:        uuid.New(),
		PickID:    pickID,
		Outcome:   outcome,
		SettledAt: m.now(),
		Notes:     notes,
	}
	m.results[pickID] = r
	return &r, nil
}

// GetUnsettled lists picks without a result, newest first
func (m *Memory) GetUnsettled(ctx context.Context) ([]contracts.Pick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contracts.Pick, 0)
	for id, p := range m.picks {
		if _, settled := m.results[id]; !settled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PickDate.After(out[j].PickDate) })
	return out, nil
}

// settledAscending snapshots settled picks, oldest first. Caller holds the lock.
func (m *Memory) settledAscending() []contracts.SettledOutcome {
	settled := make([]contracts.SettledOutcome, 0, len(m.results))
	for id, r := range m.results {
		p, ok := m.picks[id]
		if !ok {
			continue
		}
		settled = append(settled, contracts.SettledOutcome{
			PickID:     p.ID,
			PickDate:   p.PickDate,
			League:     p.League,
			Selection:  p.Selection,
			Odds:       p.Odds,
			Confidence: p.Confidence,
			Outcome:    r.Outcome,
			SettledAt:  r.SettledAt,
		})
	}
	projection.SortAscending(settled)
	return settled
}

// GetHistory returns running totals for settled picks, oldest first
func (m *Memory) GetHistory(ctx context.Context, limit, offset int) ([]contracts.HistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := projection.History(m.settledAscending())
	return projection.Page(rows, limit, offset), nil
}

// GetStats returns the aggregate row
func (m *Memory) GetStats(ctx context.Context) (*contracts.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := projection.Summarize(len(m.picks), m.settledAscending())
	return &stats, nil
}

// GetStreak returns the current run length of kind
func (m *Memory) GetStreak(ctx context.Context, kind contracts.StreakKind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settled := m.settledAscending()
	outcomes := make([]contracts.Outcome, len(settled))
	for i, s := range settled {
		outcomes[i] = s.Outcome
	}
	return projection.StreakLength(outcomes, kind), nil
}

// RefreshPerformance is a no-op; the projection is computed on read
func (m *Memory) RefreshPerformance(ctx context.Context) error {
	return nil
}
