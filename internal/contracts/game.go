package contracts

import (
	"encoding/json"
	"time"
)

// Odds keys. Prices are American odds.
const (
	OddsHomeML     = "home_ml"
	OddsAwayML     = "away_ml"
	OddsHomeSpread = "home_spread"
	OddsAwaySpread = "away_spread"
	OddsOver       = "over"
	OddsUnder      = "under"
)

// Line keys (points, not prices)
const (
	LineSpread = "spread" // home team handicap
	LineTotal  = "total"
)

// Game is one candidate event for a date
type Game struct {
	ID        string             `json:"id,omitempty"`
	HomeTeam  string             `json:"home_team"`
	AwayTeam  string             `json:"away_team"`
	League    string             `json:"league"`
	StartTime time.Time          `json:"start_time"`
	Odds      map[string]int     `json:"odds"`
	Lines     map[string]float64 `json:"lines,omitempty"`
	Venue     string             `json:"venue,omitempty"`
	Weather   *Weather           `json:"weather,omitempty"`
	Injuries  []Injury           `json:"injuries,omitempty"`
}

// Weather is forecast context for outdoor games
type Weather struct {
	TemperatureF    float64 `json:"temperature"`
	WindMPH         float64 `json:"wind_speed"`
	PrecipitationIn float64 `json:"precipitation"`
	Conditions      string  `json:"conditions,omitempty"`
}

// Injury is one entry of an injury report
type Injury struct {
	Team   string `json:"team"`
	Player string `json:"player"`
	Status string `json:"status"` // Out, Doubtful, Questionable, Probable
	Impact string `json:"impact"` // High, Medium, Low
}

// RiskLevel bounds how aggressive the recommender may be
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Constraints are forwarded to the recommender with every request
type Constraints struct {
	MinConfidence float64   `json:"min_confidence"`
	MinOdds       int       `json:"min_odds"`
	MaxOdds       int       `json:"max_odds"`
	MaxRisk       RiskLevel `json:"max_risk"`
	Timezone      string    `json:"timezone"`
}

// Admits reports whether a price and confidence satisfy the constraints
func (c Constraints) Admits(odds int, confidence float64) bool {
	return ValidOdds(odds) &&
		odds >= c.MinOdds && odds <= c.MaxOdds &&
		confidence >= c.MinConfidence
}

// RecommendRequest is the recommender input
type RecommendRequest struct {
	Date        Date        `json:"date"`
	Games       []Game      `json:"games"`
	Constraints Constraints `json:"constraints"`
}

// Recommendation is the structured output of a recommender
type Recommendation struct {
	Selection     string          `json:"selection"`
	Market        Market          `json:"market"`
	League        string          `json:"league"`
	Odds          int             `json:"odds"`
	Confidence    float64         `json:"confidence"`
	ExpectedValue float64         `json:"expected_value"`
	Rationale     Rationale       `json:"rationale"`
	FeaturesUsed  json.RawMessage `json:"features_used,omitempty"`
	ModelVersion  string          `json:"model_version,omitempty"`
}
