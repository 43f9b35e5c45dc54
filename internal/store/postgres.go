// Package store persists picks and results and serves the performance
// projection. Postgres is the production driver; Memory backs tests and
// STORE_DRIVER=memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/projection"
)

// Repository pick 저장소 (Postgres)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.PickStore = (*Repository)(nil)

const pickColumns = `
	p.id, p.pick_date, p.league, p.home_team, p.away_team, p.market, p.selection,
	p.odds, p.confidence, p.rationale, p.features_used, p.expected_value,
	p.model_version, p.created_at, p.updated_at`

// scanPick reads one row selected with pickColumns
func scanPick(row pgx.Row) (*contracts.Pick, error) {
	var (
		p            contracts.Pick
		pickDate     time.Time
		market       string
		rationale    []byte
		features     []byte
		modelVersion *string
	)

	err := row.Scan(
		&p.ID, &pickDate, &p.League, &p.HomeTeam, &p.AwayTeam, &market, &p.Selection,
		&p.Odds, &p.Confidence, &rationale, &features, &p.ExpectedValue,
		&modelVersion, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PickDate = contracts.DateOf(pickDate, time.UTC)
	p.Market = contracts.Market(market)
	if len(rationale) > 0 {
		if err := json.Unmarshal(rationale, &p.Rationale); err != nil {
			return nil, fmt.Errorf("decode rationale: %w", err)
		}
	}
	if p.Rationale.TopFactors == nil {
		p.Rationale.TopFactors = []string{}
	}
	p.FeaturesUsed = json.RawMessage(features)
	if modelVersion != nil {
		p.ModelVersion = *modelVersion
	}
	return &p, nil
}

// GetPick 날짜별 pick 조회 (없으면 nil)
func (r *Repository) GetPick(ctx context.Context, date contracts.Date) (*contracts.Pick, error) {
	query := `SELECT ` + pickColumns + `
		FROM picks p
		WHERE p.pick_date = $1`

	p, err := scanPick(r.pool.QueryRow(ctx, query, date.Time()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("store.get_pick", err)
	}
	return p, nil
}

// PickExists 날짜별 pick 존재 여부
func (r *Repository) PickExists(ctx context.Context, date contracts.Date) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM picks WHERE pick_date = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, date.Time()).Scan(&exists); err != nil {
		return false, mapError("store.pick_exists", err)
	}
	return exists, nil
}

// GetPickByID pick과 결과 조회
func (r *Repository) GetPickByID(ctx context.Context, id uuid.UUID) (*contracts.Pick, *contracts.Result, error) {
	const op = "store.get_pick_by_id"

	query := `SELECT ` + pickColumns + `
		FROM picks p
		WHERE p.id = $1`

	p, err := scanPick(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, contracts.NotFound(op, fmt.Sprintf("pick %s not found", id))
	}
	if err != nil {
		return nil, nil, mapError(op, err)
	}

	res, err := r.getResult(ctx, id)
	if err != nil {
		return nil, nil, mapError(op, err)
	}
	return p, res, nil
}

func (r *Repository) getResult(ctx context.Context, pickID uuid.UUID) (*contracts.Result, error) {
	query := `
		SELECT id, pick_id, outcome, settled_at, notes
		FROM results
		WHERE pick_id = $1`

	var (
		res     contracts.Result
		outcome string
	)
	err := r.pool.QueryRow(ctx, query, pickID).Scan(&res.ID, &res.PickID, &outcome, &res.SettledAt, &res.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res.Outcome = contracts.Outcome(outcome)
	return &res, nil
}

// InsertPick pick 저장. 같은 날짜가 있으면 duplicate_date
func (r *Repository) InsertPick(ctx context.Context, np contracts.NewPick) (*contracts.Pick, error) {
	const op = "store.insert_pick"

	np = np.Normalize()
	if err := np.Validate(); err != nil {
		return nil, err
	}

	rationale, err := json.Marshal(np.Rationale)
	if err != nil {
		return nil, contracts.Wrap(contracts.KindValidation, op, err)
	}

	query := `
		INSERT INTO picks AS p
			(id, pick_date, league, home_team, away_team, market, selection,
			 odds, confidence, rationale, features_used, expected_value, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + pickColumns

	p, err := scanPick(r.pool.QueryRow(ctx, query,
		uuid.New(), np.PickDate.Time(), np.League, np.HomeTeam, np.AwayTeam,
		string(np.Market), np.Selection, np.Odds, np.Confidence,
		rationale, []byte(np.FeaturesUsed), np.ExpectedValue, nullString(np.ModelVersion),
	))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// DeletePick pick 삭제 (결과는 CASCADE)
func (r *Repository) DeletePick(ctx context.Context, id uuid.UUID) error {
	const op = "store.delete_pick"

	tag, err := r.pool.Exec(ctx, `DELETE FROM picks WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.NotFound(op, fmt.Sprintf("pick %s not found", id))
	}
	return nil
}

// SettlePick 결과 기록. pick당 한 번만 가능
func (r *Repository) SettlePick(ctx context.Context, pickID uuid.UUID, outcome contracts.Outcome, notes *string) (*contracts.Result, error) {
	const op = "store.settle_pick"

	if _, err := contracts.ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer tx.Rollback(ctx)

	var found bool
	err = tx.QueryRow(ctx, `SELECT true FROM picks WHERE id = $1 FOR UPDATE`, pickID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFound(op, fmt.Sprintf("pick %s not found", pickID))
	}
	if err != nil {
		return nil, mapError(op, err)
	}

	query := `
		INSERT INTO results (id, pick_id, outcome, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, pick_id, outcome, settled_at, notes`

	var (
		res    contracts.Result
		stored string
	)
	err = tx.QueryRow(ctx, query, uuid.New(), pickID, string(outcome), notes).
		Scan(&res.ID, &res.PickID, &stored, &res.SettledAt, &res.Notes)
	if err != nil {
		return nil, mapError(op, err)
	}
	res.Outcome = contracts.Outcome(stored)

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(op, err)
	}
	return &res, nil
}

// GetUnsettled 결과 없는 pick 목록 (최신순)
func (r *Repository) GetUnsettled(ctx context.Context) ([]contracts.Pick, error) {
	query := `SELECT ` + pickColumns + `
		FROM picks p
		WHERE NOT EXISTS (SELECT 1 FROM results r WHERE r.pick_id = p.id)
		ORDER BY p.pick_date DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, mapError("store.get_unsettled", err)
	}
	defer rows.Close()

	picks := make([]contracts.Pick, 0)
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, mapError("store.get_unsettled", err)
		}
		picks = append(picks, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("store.get_unsettled", err)
	}
	return picks, nil
}

// GetHistory 누적 성과 이력 (오래된 순)
// Rows whose pick was deleted since the last refresh are dropped by the join.
func (r *Repository) GetHistory(ctx context.Context, limit, offset int) ([]contracts.HistoryRow, error) {
	const op = "store.get_history"

	query := `
		SELECT h.pick_id, h.pick_date, h.league, h.selection, h.odds, h.confidence,
			h.outcome, h.settled_at, h.running_wins, h.running_losses, h.running_pushes,
			h.running_win_rate
		FROM pick_performance_history h
		JOIN picks p ON p.id = h.pick_id
		JOIN results r ON r.pick_id = h.pick_id
		ORDER BY h.pick_date ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	history := make([]contracts.HistoryRow, 0, limit)
	for rows.Next() {
		var (
			h        contracts.HistoryRow
			pickDate time.Time
			outcome  string
		)
		if err := rows.Scan(
			&h.PickID, &pickDate, &h.League, &h.Selection, &h.Odds, &h.Confidence,
			&outcome, &h.SettledAt, &h.RunningWins, &h.RunningLosses, &h.RunningPushes,
			&h.RunningWinRate,
		); err != nil {
			return nil, mapError(op, err)
		}
		h.PickDate = contracts.DateOf(pickDate, time.UTC)
		h.Outcome = contracts.Outcome(outcome)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return history, nil
}

// GetStats 집계 행 + 현재 연속 기록
func (r *Repository) GetStats(ctx context.Context) (*contracts.Stats, error) {
	const op = "store.get_stats"

	query := `
		SELECT total_picks, wins, losses, pushes, settled, win_rate
		FROM pick_performance_stats`

	var s contracts.Stats
	if err := r.pool.QueryRow(ctx, query).Scan(
		&s.TotalPicks, &s.Wins, &s.Losses, &s.Pushes, &s.Settled, &s.WinRate,
	); err != nil {
		return nil, mapError(op, err)
	}

	outcomes, err := r.outcomesAscending(ctx)
	if err != nil {
		return nil, mapError(op, err)
	}
	s.CurrentStreak = projection.CurrentStreak(outcomes)
	return &s, nil
}

// GetStreak kind의 현재 연속 횟수
func (r *Repository) GetStreak(ctx context.Context, kind contracts.StreakKind) (int, error) {
	outcomes, err := r.outcomesAscending(ctx)
	if err != nil {
		return 0, mapError("store.get_streak", err)
	}
	return projection.StreakLength(outcomes, kind), nil
}

func (r *Repository) outcomesAscending(ctx context.Context) ([]contracts.Outcome, error) {
	query := `
		SELECT r.outcome
		FROM results r
		JOIN picks p ON p.id = r.pick_id
		ORDER BY p.pick_date ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.Outcome, error) {
		var o string
		err := row.Scan(&o)
		return contracts.Outcome(o), err
	})
}

// RefreshPerformance 성과 이력 뷰 갱신
func (r *Repository) RefreshPerformance(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY pick_performance_history`); err != nil {
		return mapError("store.refresh_performance", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapError translates driver errors into contract kinds.
// ⭐ SSOT: Postgres 에러 코드 매핑은 여기서만
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var typed *contracts.Error
	if errors.As(err, &typed) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "results_pick_id_key" {
				return &contracts.Error{Kind: contracts.KindAlreadySettled, Op: op, Msg: "pick is already settled", Err: err}
			}
			return &contracts.Error{Kind: contracts.KindDuplicateDate, Op: op, Msg: "a pick already exists for this date", Err: err}
		case "23514", "23502", "22P02": // check_violation, not_null_violation, invalid_text_representation
			return &contracts.Error{Kind: contracts.KindValidation, Op: op, Msg: pgErr.Message, Err: err}
		case "23503": // foreign_key_violation
			return &contracts.Error{Kind: contracts.KindNotFound, Op: op, Msg: "pick not found", Err: err}
		case "40001", "40P01", "55P03", "57P01", "57P03", "53300": // serialization, deadlock, lock, shutdown, too many connections
			return contracts.Wrap(contracts.KindStoreTransient, op, err)
		}
		return contracts.Wrap(contracts.KindInternal, op, err)
	}

	if errors.Is(err, context.Canceled) {
		return contracts.Wrap(contracts.KindInternal, op, err)
	}

	// connection refused, timeouts, broken pipes
	return contracts.Wrap(contracts.KindStoreTransient, op, err)
}
