package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Market is the bet type of a pick
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketSpread    Market = "spread"
	MarketTotal     Market = "total"
)

// Valid reports whether m is a known market
func (m Market) Valid() bool {
	switch m {
	case MarketMoneyline, MarketSpread, MarketTotal:
		return true
	}
	return false
}

// Outcome is the settled result of a pick
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// ParseOutcome accepts win, loss or push (case-insensitive)
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeWin, OutcomeLoss, OutcomePush:
		return o, nil
	}
	return "", Validation("parse_outcome", fmt.Sprintf("result must be one of win, loss, push (got %q)", s))
}

// Odds bounds in American form
const (
	MinAbsOdds = 100
	MaxAbsOdds = 1000
)

// ValidOdds reports whether odds lies in [-1000,-100] ∪ [100,1000]
func ValidOdds(odds int) bool {
	abs := odds
	if abs < 0 {
		abs = -abs
	}
	return abs >= MinAbsOdds && abs <= MaxAbsOdds
}

// Rationale explains a pick
type Rationale struct {
	TopFactors     []string           `json:"top_factors"`
	Reasoning      string             `json:"reasoning"`
	FactorWeights  map[string]float64 `json:"factor_weights,omitempty"`
	RiskAssessment string             `json:"risk_assessment,omitempty"`
}

// Pick is the single recommendation bound to one calendar date
type Pick struct {
	ID            uuid.UUID       `json:"id"`
	PickDate      Date            `json:"pick_date"`
	League        string          `json:"league"`
	HomeTeam      string          `json:"home_team"`
	AwayTeam      string          `json:"away_team"`
	Market        Market          `json:"market"`
	Selection     string          `json:"selection"`
	Odds          int             `json:"odds"`
	Confidence    float64         `json:"confidence"`
	Rationale     Rationale       `json:"rationale"`
	FeaturesUsed  json.RawMessage `json:"features_used,omitempty"`
	ExpectedValue *float64        `json:"expected_value,omitempty"`
	ModelVersion  string          `json:"model_version,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewPick carries the fields of a pick before it is persisted
type NewPick struct {
	PickDate      Date
	League        string
	HomeTeam      string
	AwayTeam      string
	Market        Market
	Selection     string
	Odds          int
	Confidence    float64
	Rationale     Rationale
	FeaturesUsed  json.RawMessage
	ExpectedValue *float64
	ModelVersion  string
}

// Normalize trims text fields and fills defaults
func (n NewPick) Normalize() NewPick {
	n.League = strings.ToUpper(strings.TrimSpace(n.League))
	n.HomeTeam = strings.TrimSpace(n.HomeTeam)
	n.AwayTeam = strings.TrimSpace(n.AwayTeam)
	n.Selection = strings.TrimSpace(n.Selection)
	if n.Market == "" {
		n.Market = MarketMoneyline
	}
	if len(n.FeaturesUsed) == 0 {
		n.FeaturesUsed = json.RawMessage(`[]`)
	}
	if n.Rationale.TopFactors == nil {
		n.Rationale.TopFactors = []string{}
	}
	return n
}

// Validate enforces the field domains of a pick
func (n NewPick) Validate() error {
	const op = "pick.validate"

	if n.PickDate.IsZero() {
		return Validation(op, "pick_date is required")
	}
	if n.League == "" {
		return Validation(op, "league is required")
	}
	if n.HomeTeam == "" || n.AwayTeam == "" {
		return Validation(op, "home_team and away_team are required")
	}
	if strings.EqualFold(n.HomeTeam, n.AwayTeam) {
		return Validation(op, "home_team and away_team must differ")
	}
	if n.Selection == "" {
		return Validation(op, "selection is required")
	}
	if !n.Market.Valid() {
		return Validation(op, fmt.Sprintf("unknown market %q", n.Market))
	}
	if !ValidOdds(n.Odds) {
		return Validation(op, fmt.Sprintf("odds %d outside [-1000,-100] ∪ [100,1000]", n.Odds))
	}
	if math.IsNaN(n.Confidence) || n.Confidence < 0 || n.Confidence > 100 {
		return Validation(op, fmt.Sprintf("confidence %.2f outside [0,100]", n.Confidence))
	}
	if len(n.FeaturesUsed) > 0 && !json.Valid(n.FeaturesUsed) {
		return Validation(op, "features_used is not valid JSON")
	}
	return nil
}

// Result is the settled outcome of one pick
type Result struct {
	ID        uuid.UUID `json:"id"`
	PickID    uuid.UUID `json:"pick_id"`
	Outcome   Outcome   `json:"outcome"`
	SettledAt time.Time `json:"settled_at"`
	Notes     *string   `json:"notes,omitempty"`
}

// PickWithResult pairs a pick with its settlement, if any
type PickWithResult struct {
	Pick   Pick    `json:"pick"`
	Result *Result `json:"result"`
}
