package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=../mocks/mock_contracts.go -package=mocks github.com/KevinGoltermann/moneyline-sub000/internal/contracts GameFeed,Recommender

// PickStore is the single authority for picks, results and the performance
// projection.
// ⭐ SSOT: 저장소 인터페이스는 여기서만 정의
type PickStore interface {
	// GetPick returns nil, nil when no pick exists for date
	GetPick(ctx context.Context, date Date) (*Pick, error)
	PickExists(ctx context.Context, date Date) (bool, error)
	// GetPickByID fails with not_found; the result is nil when unsettled
	GetPickByID(ctx context.Context, id uuid.UUID) (*Pick, *Result, error)
	// InsertPick fails with duplicate_date or validation
	InsertPick(ctx context.Context, p NewPick) (*Pick, error)
	// DeletePick cascades to the result; fails with not_found
	DeletePick(ctx context.Context, id uuid.UUID) error
	// SettlePick fails with not_found, already_settled or validation
	SettlePick(ctx context.Context, pickID uuid.UUID, outcome Outcome, notes *string) (*Result, error)
	// GetUnsettled orders by pick_date descending
	GetUnsettled(ctx context.Context) ([]Pick, error)
	// GetHistory orders by pick_date ascending
	GetHistory(ctx context.Context, limit, offset int) ([]HistoryRow, error)
	GetStats(ctx context.Context) (*Stats, error)
	// GetStreak returns the current run length of kind, 0 when the newest
	// settled outcome differs
	GetStreak(ctx context.Context, kind StreakKind) (int, error)
	RefreshPerformance(ctx context.Context) error
}

// GameFeed yields the candidate games of a date.
// ⭐ SSOT: 경기 데이터 수집 인터페이스
type GameFeed interface {
	// Games fails with feed_unavailable; an empty slice is not an error
	Games(ctx context.Context, date Date, loc *time.Location) ([]Game, error)
}

// Recommender turns candidates into one structured pick.
// ⭐ SSOT: 추천 모델 인터페이스
type Recommender interface {
	// Recommend fails with no_viable_pick or recommender_unavailable
	Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error)
}
