// Package engine runs the daily pick lifecycle: generate, recompute and
// settle. Every transition goes through the store; the unique pick date is
// the only cross-request coordination.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// Status is the successful outcome of a generate run
type Status string

const (
	StatusGenerated      Status = "generated"
	StatusAlreadyPresent Status = "already_present"
	StatusNoGames        Status = "no_games"
	StatusNoViablePick   Status = "no_viable_pick"
)

// GenerateResult describes a successful generate run. Pick is nil unless
// Status is generated or already_present.
type GenerateResult struct {
	Status   Status
	Date     contracts.Date
	Pick     *contracts.Pick
	Message  string
	Games    int
	Duration time.Duration
}

// RecomputeResult describes a recompute run
type RecomputeResult struct {
	Replaced bool
	Previous *contracts.Pick
	GenerateResult
}

// Options tune the engine
type Options struct {
	Constraints   contracts.Constraints
	Location      *time.Location
	MaxFutureDays int
}

// Engine is the pick lifecycle state machine
// ⭐ SSOT: pick 생성/재계산/정산은 여기서만
type Engine struct {
	store       contracts.PickStore
	feed        contracts.GameFeed
	recommender contracts.Recommender
	logger      *logger.Logger
	metrics     *metrics.Metrics

	constraints   contracts.Constraints
	loc           *time.Location
	maxFutureDays int

	mu        sync.RWMutex
	listeners []Listener
	now       func() time.Time
}

// New creates an engine
func New(store contracts.PickStore, feed contracts.GameFeed, rec contracts.Recommender, opts Options, log *logger.Logger, m *metrics.Metrics) *Engine {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if opts.Constraints.Timezone == "" {
		opts.Constraints.Timezone = loc.String()
	}
	return &Engine{
		store:         store,
		feed:          feed,
		recommender:   rec,
		logger:        log,
		metrics:       m,
		constraints:   opts.Constraints,
		loc:           loc,
		maxFutureDays: opts.MaxFutureDays,
		now:           time.Now,
	}
}

// Today is the current date in the operating timezone
func (e *Engine) Today() contracts.Date {
	return contracts.DateOf(e.now(), e.loc)
}

// Location returns the operating timezone
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Constraints returns the default recommender constraints
func (e *Engine) Constraints() contracts.Constraints {
	return e.constraints
}

// Store exposes the pick store for read paths
func (e *Engine) Store() contracts.PickStore {
	return e.store
}

// Generate creates the pick for date unless one exists.
// Failures carry their contracts.Kind; use contracts.IsRetryable to decide on a retry.
func (e *Engine) Generate(ctx context.Context, date contracts.Date) (*GenerateResult, error) {
	res, err := e.generate(ctx, date, false)
	e.observe(res, err)
	return res, err
}

func (e *Engine) generate(ctx context.Context, date contracts.Date, replacing bool) (*GenerateResult, error) {
	start := e.now()
	log := e.logger.WithField("date", date.String())

	done := func(r *GenerateResult) (*GenerateResult, error) {
		r.Date = date
		r.Duration = e.now().Sub(start)
		log.WithFields(map[string]interface{}{
			"status":      string(r.Status),
			"games":       r.Games,
			"duration_ms": r.Duration.Milliseconds(),
		}).Info(r.Message)
		return r, nil
	}

	// 1. idempotency guard
	var exists bool
	err := e.retryStore(ctx, func() error {
		var err error
		exists, err = e.store.PickExists(ctx, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("check existing pick for %s: %w", date, err)
	}
	if exists {
		return done(e.alreadyPresent(ctx, date))
	}

	// 2. candidates
	games, err := e.feed.Games(ctx, date, e.loc)
	if err != nil {
		return nil, fmt.Errorf("fetch games for %s: %w", date, err)
	}
	if len(games) == 0 {
		return done(&GenerateResult{Status: StatusNoGames, Message: fmt.Sprintf("No games scheduled for %s", date)})
	}

	// 3. recommendation
	recStart := time.Now()
	rec, err := e.recommender.Recommend(ctx, contracts.RecommendRequest{
		Date:        date,
		Games:       games,
		Constraints: e.constraints,
	})
	e.metrics.RecommendLatency(time.Since(recStart).Seconds())
	if contracts.IsKind(err, contracts.KindNoViablePick) {
		return done(&GenerateResult{Status: StatusNoViablePick, Games: len(games),
			Message: fmt.Sprintf("No viable pick for %s", date)})
	}
	if err != nil {
		return nil, fmt.Errorf("recommend for %s: %w", date, err)
	}
	if !e.constraints.Admits(rec.Odds, rec.Confidence) {
		log.WithFields(map[string]interface{}{
			"selection":  rec.Selection,
			"odds":       rec.Odds,
			"confidence": rec.Confidence,
		}).Warn("Recommendation outside constraints discarded")
		return done(&GenerateResult{Status: StatusNoViablePick, Games: len(games),
			Message: fmt.Sprintf("No viable pick for %s", date)})
	}

	// 4. resolve the selection to one candidate game
	game, ok := MatchSelection(rec.Selection, games)
	if !ok {
		return nil, contracts.E(contracts.KindSelectionUnmatched, "engine.generate",
			fmt.Sprintf("selection %q matches no candidate game for %s", rec.Selection, date))
	}

	np := newPickFrom(date, game, rec).Normalize()
	if err := np.Validate(); err != nil {
		return nil, &contracts.Error{Kind: contracts.KindInvalidRecommendation, Op: "engine.generate",
			Msg: "recommendation failed validation", Err: err}
	}

	// 5. persist; a concurrent winner makes this run already_present
	var pick *contracts.Pick
	err = e.retryStore(ctx, func() error {
		var err error
		pick, err = e.store.InsertPick(ctx, np)
		return err
	})
	if contracts.IsKind(err, contracts.KindDuplicateDate) {
		return done(e.alreadyPresent(ctx, date))
	}
	if err != nil {
		return nil, fmt.Errorf("insert pick for %s: %w", date, err)
	}

	evType := EventGenerated
	if replacing {
		evType = EventReplaced
	}
	e.emit(PickEvent{Type: evType, Date: date, Pick: pick})

	return done(&GenerateResult{
		Status:  StatusGenerated,
		Pick:    pick,
		Games:   len(games),
		Message: fmt.Sprintf("Pick generated for %s: %s (%+d)", date, pick.Selection, pick.Odds),
	})
}

func (e *Engine) alreadyPresent(ctx context.Context, date contracts.Date) *GenerateResult {
	msg := fmt.Sprintf("Pick already exists for %s", date)
	if date == e.Today() {
		msg = "Pick already exists for today"
	}
	// best effort; the status is what matters
	existing, err := e.store.GetPick(ctx, date)
	if err != nil {
		e.logger.WithField("date", date.String()).WithError(err).Warn("Could not load existing pick")
	}
	return &GenerateResult{Status: StatusAlreadyPresent, Pick: existing, Message: msg}
}

// Recompute deletes any pick for date and generates a fresh one
func (e *Engine) Recompute(ctx context.Context, date contracts.Date) (*RecomputeResult, error) {
	const op = "engine.recompute"

	if date.IsZero() {
		date = e.Today()
	}
	if limit := e.Today().AddDays(e.maxFutureDays); date.After(limit) {
		return nil, contracts.Validation(op,
			fmt.Sprintf("date %s is more than %d days ahead", date, e.maxFutureDays))
	}

	var previous *contracts.Pick
	err := e.retryStore(ctx, func() error {
		var err error
		previous, err = e.store.GetPick(ctx, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load pick for %s: %w", date, err)
	}

	if previous != nil {
		if err := e.store.DeletePick(ctx, previous.ID); err != nil && !contracts.IsKind(err, contracts.KindNotFound) {
			return nil, fmt.Errorf("delete pick %s: %w", previous.ID, err)
		}
		e.refresh(ctx)
		e.emit(PickEvent{Type: EventDeleted, Date: date, Pick: previous})
		e.logger.WithFields(map[string]interface{}{
			"date":    date.String(),
			"pick_id": previous.ID.String(),
		}).Info("Existing pick deleted for recompute")
	}

	gen, err := e.generate(ctx, date, previous != nil)
	e.observe(gen, err)
	if err != nil {
		return nil, err
	}

	res := &RecomputeResult{Replaced: previous != nil, Previous: previous, GenerateResult: *gen}
	switch {
	case gen.Status == StatusGenerated && res.Replaced:
		res.Message = fmt.Sprintf("Pick for %s recomputed and replaced", date)
	case gen.Status == StatusGenerated:
		res.Message = fmt.Sprintf("Pick for %s recomputed and created", date)
	case res.Replaced:
		res.Message = fmt.Sprintf("Previous pick for %s removed; %s", date, lowerFirst(gen.Message))
	}
	return res, nil
}

// Settle records the outcome of a pick exactly once
func (e *Engine) Settle(ctx context.Context, pickID uuid.UUID, outcome contracts.Outcome, notes *string) (*contracts.Result, error) {
	const op = "engine.settle"

	outcome, err := contracts.ParseOutcome(string(outcome))
	if err != nil {
		return nil, err
	}

	var (
		pick     *contracts.Pick
		existing *contracts.Result
	)
	err = e.retryStore(ctx, func() error {
		var err error
		pick, existing, err = e.store.GetPickByID(ctx, pickID)
		return err
	})
	if err != nil {
		e.metrics.Failure(string(contracts.KindOf(err)))
		return nil, err
	}
	if existing != nil {
		return nil, contracts.E(contracts.KindAlreadySettled, op, fmt.Sprintf("pick %s is already settled", pickID))
	}

	result, err := e.store.SettlePick(ctx, pickID, outcome, notes)
	if err != nil {
		e.metrics.Failure(string(contracts.KindOf(err)))
		return nil, err
	}

	e.refresh(ctx)
	e.metrics.Settlement(string(outcome))
	e.emit(PickEvent{Type: EventSettled, Date: pick.PickDate, Pick: pick, Result: result})

	e.logger.WithFields(map[string]interface{}{
		"pick_id": pickID.String(),
		"date":    pick.PickDate.String(),
		"outcome": string(outcome),
	}).Info("Pick settled")
	return result, nil
}

// refresh updates the projection. A failure is logged; the periodic
// refresh job catches up.
func (e *Engine) refresh(ctx context.Context) {
	if err := e.store.RefreshPerformance(ctx); err != nil {
		e.logger.WithError(err).Warn("Performance refresh failed")
	}
}

// retryStore runs fn and repeats it once on store_transient
func (e *Engine) retryStore(ctx context.Context, fn func() error) error {
	err := fn()
	if !contracts.IsKind(err, contracts.KindStoreTransient) || ctx.Err() != nil {
		return err
	}
	e.logger.WithError(err).Warn("Transient store error, retrying once")
	return fn()
}

func (e *Engine) observe(res *GenerateResult, err error) {
	if err != nil {
		e.metrics.Generate("failed")
		e.metrics.Failure(string(contracts.KindOf(err)))
		return
	}
	e.metrics.Generate(string(res.Status))
}

// MatchSelection returns the first game whose home or away team name
// appears as whole words in selection
func MatchSelection(selection string, games []contracts.Game) (contracts.Game, bool) {
	padded := " " + strings.Join(strings.Fields(selection), " ") + " "
	for _, g := range games {
		if containsTeam(padded, g.HomeTeam) || containsTeam(padded, g.AwayTeam) {
			return g, true
		}
	}
	return contracts.Game{}, false
}

func containsTeam(paddedSelection, team string) bool {
	team = strings.Join(strings.Fields(team), " ")
	if team == "" {
		return false
	}
	return strings.Contains(paddedSelection, " "+team+" ")
}

func newPickFrom(date contracts.Date, g contracts.Game, rec *contracts.Recommendation) contracts.NewPick {
	league := g.League
	if league == "" {
		league = rec.League
	}
	var ev *float64
	if rec.ExpectedValue != 0 {
		v := rec.ExpectedValue
		ev = &v
	}
	return contracts.NewPick{
		PickDate:      date,
		League:        league,
		HomeTeam:      g.HomeTeam,
		AwayTeam:      g.AwayTeam,
		Market:        rec.Market,
		Selection:     rec.Selection,
		Odds:          rec.Odds,
		Confidence:    rec.Confidence,
		Rationale:     rec.Rationale,
		FeaturesUsed:  rec.FeaturesUsed,
		ExpectedValue: ev,
		ModelVersion:  rec.ModelVersion,
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ErrorLabel is the engine's name for a failure kind, as reported to the
// scheduler and the trigger endpoint
func ErrorLabel(err error) string {
	switch kind := contracts.KindOf(err); kind {
	case contracts.KindFeedUnavailable:
		return "feed_error"
	case contracts.KindRecommenderUnavailable:
		return "recommender_error"
	default:
		return string(kind)
	}
}
