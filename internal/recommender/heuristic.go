package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// HeuristicVersion is stamped on every heuristic pick
const HeuristicVersion = "heuristic-1.2.0"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// home advantage in confidence points
var homeAdvantage = map[string]float64{
	"NFL": 3.0,
	"NBA": 2.5,
	"MLB": 2.0,
	"NHL": 2.0,
}

const defaultHomeAdvantage = 2.5

// venues with a reputation for a louder home edge
var notoriousVenues = []string{"arrowhead", "lambeau", "centurylink", "kansas city", "green bay", "seattle"}

// minimum expected value per unit stake, by risk appetite
var evThreshold = map[contracts.RiskLevel]float64{
	contracts.RiskLow:    0.08,
	contracts.RiskMedium: 0.05,
	contracts.RiskHigh:   0.02,
}

var injuryImpactWeight = map[string]float64{"High": 0.15, "Medium": 0.08, "Low": 0.03}
var injuryStatusWeight = map[string]float64{"Out": 1.0, "Doubtful": 0.8, "Questionable": 0.4, "Probable": 0.1}

var factorLabels = map[string]string{
	"market_probability": "Market-implied win probability",
	"home_advantage":     "Home field advantage",
	"injury_edge":        "Injury report differential",
	"weather":            "Weather conditions",
	"price_band":         "Price in the value band",
	"market_value":       "Positive expected value against the price",
}

// Heuristic scores moneyline candidates with fixed rules and no I/O
type Heuristic struct {
	logger *logger.Logger
}

var _ contracts.Recommender = (*Heuristic)(nil)

// NewHeuristic creates the built-in recommender
func NewHeuristic(log *logger.Logger) *Heuristic {
	return &Heuristic{logger: log}
}

// candidate is one scored side of one game
type candidate struct {
	game       contracts.Game
	team       string
	side       string // home, away
	odds       int
	confidence float64
	ev         float64
	factors    map[string]float64
}

// Recommend picks the best moneyline side across all games
func (h *Heuristic) Recommend(ctx context.Context, req contracts.RecommendRequest) (*contracts.Recommendation, error) {
	const op = "recommender.heuristic"

	if err := ctx.Err(); err != nil {
		return nil, contracts.Wrap(contracts.KindRecommenderUnavailable, op, err)
	}

	minEV, ok := evThreshold[req.Constraints.MaxRisk]
	if !ok {
		minEV = evThreshold[contracts.RiskMedium]
	}

	var candidates []candidate
	for _, g := range req.Games {
		for _, side := range []string{"home", "away"} {
			c, ok := score(g, side)
			if !ok {
				continue
			}
			if !req.Constraints.Admits(c.odds, c.confidence) || c.ev < minEV {
				continue
			}
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		return nil, contracts.E(contracts.KindNoViablePick, op,
			fmt.Sprintf("no candidate among %d games met the constraints", len(req.Games)))
	}

	// stable: earlier games win exact ties
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ev != candidates[j].ev {
			return candidates[i].ev > candidates[j].ev
		}
		return candidates[i].confidence > candidates[j].confidence
	})
	best := candidates[0]

	h.logger.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"selection":  best.team,
		"odds":       best.odds,
		"confidence": best.confidence,
		"ev":         best.ev,
	}).Info("Heuristic recommendation selected")

	return best.recommendation(), nil
}

// score evaluates one side of a game. ok is false without a usable price.
func score(g contracts.Game, side string) (candidate, bool) {
	homeML, okH := g.Odds[contracts.OddsHomeML]
	awayML, okA := g.Odds[contracts.OddsAwayML]
	if !okH || !okA || homeML == 0 || awayML == 0 {
		return candidate{}, false
	}

	// no-vig market probability
	pHome := impliedProbability(homeML)
	pAway := impliedProbability(awayML)
	pHome = pHome.Div(pHome.Add(pAway))

	c := candidate{game: g, side: side, factors: make(map[string]float64)}
	var market decimal.Decimal
	homeSign := 1.0
	if side == "home" {
		c.team, c.odds, market = g.HomeTeam, homeML, pHome
	} else {
		c.team, c.odds, market = g.AwayTeam, awayML, one.Sub(pHome)
		homeSign = -1.0
	}

	marketPts := market.Sub(decimal.NewFromFloat(0.5)).Mul(hundred).InexactFloat64()
	c.factors["market_probability"] = marketPts

	c.factors["home_advantage"] = homeSign * venueAdvantage(g)

	injuryEdge := injuryImpact(g.Injuries, g.AwayTeam) - injuryImpact(g.Injuries, g.HomeTeam)
	c.factors["injury_edge"] = homeSign * injuryEdge * 10

	if g.Weather != nil {
		c.factors["weather"] = weatherImpact(g.Weather) * 5
	}

	c.factors["price_band"] = priceBand(c.odds)

	confidence := 50.0
	for _, v := range c.factors {
		confidence += v
	}
	confidence = clamp(confidence, 50, 95)
	c.confidence = decimal.NewFromFloat(confidence).Round(1).InexactFloat64()

	p := decimal.NewFromFloat(c.confidence).Div(hundred)
	c.ev = expectedValue(p, c.odds).Round(4).InexactFloat64()
	c.factors["market_value"] = c.ev * 100

	return c, true
}

// impliedProbability converts American odds to the break-even probability
func impliedProbability(odds int) decimal.Decimal {
	o := decimal.NewFromInt(int64(odds))
	if odds > 0 {
		return hundred.Div(o.Add(hundred))
	}
	a := o.Abs()
	return a.Div(a.Add(hundred))
}

// profitPerUnit is the net win of a one-unit stake: decimal odds minus one
func profitPerUnit(odds int) decimal.Decimal {
	o := decimal.NewFromInt(int64(odds))
	if odds > 0 {
		return o.Div(hundred)
	}
	return hundred.Div(o.Abs())
}

// expectedValue = p·(decimal−1) − (1−p)
func expectedValue(p decimal.Decimal, odds int) decimal.Decimal {
	return p.Mul(profitPerUnit(odds)).Sub(one.Sub(p))
}

func venueAdvantage(g contracts.Game) float64 {
	adv, ok := homeAdvantage[strings.ToUpper(g.League)]
	if !ok {
		adv = defaultHomeAdvantage
	}
	venue := strings.ToLower(g.Venue)
	if venue == "" {
		return adv
	}
	for _, v := range notoriousVenues {
		if strings.Contains(venue, v) {
			return adv + 1.0
		}
	}
	return adv
}

// injuryImpact sums impact × status for team, capped at 0.5
func injuryImpact(injuries []contracts.Injury, team string) float64 {
	total := 0.0
	for _, inj := range injuries {
		if !strings.EqualFold(inj.Team, team) {
			continue
		}
		impact, ok := injuryImpactWeight[inj.Impact]
		if !ok {
			impact = injuryImpactWeight["Low"]
		}
		status, ok := injuryStatusWeight[inj.Status]
		if !ok {
			status = injuryStatusWeight["Probable"]
		}
		total += impact * status
	}
	if total > 0.5 {
		return 0.5
	}
	return total
}

// weatherImpact is in [-0.2, 0.1]; harsh conditions lower certainty for both sides
func weatherImpact(w *contracts.Weather) float64 {
	impact := 0.0
	switch {
	case w.TemperatureF < 32:
		impact -= 0.1
	case w.TemperatureF > 90:
		impact -= 0.05
	}
	switch {
	case w.WindMPH > 15:
		impact -= 0.08
	case w.WindMPH > 10:
		impact -= 0.03
	}
	if w.PrecipitationIn > 0.1 {
		impact -= 0.1
	}
	return clamp(impact, -0.2, 0.1)
}

// priceBand favours short prices and penalises long ones
func priceBand(odds int) float64 {
	abs := odds
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 200:
		return -5
	case abs >= 100 && abs <= 150:
		return 5
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func riskAssessment(confidence, ev float64) string {
	switch {
	case confidence > 80 && ev > 0.1:
		return "Low risk - high confidence with strong expected value"
	case confidence > 70 && ev > 0.05:
		return "Moderate risk - good confidence with positive expected value"
	case confidence > 60:
		return "Moderate risk - acceptable confidence level"
	default:
		return "Higher risk - lower confidence, proceed with caution"
	}
}

// topFactors returns the labels of the three strongest positive factors
func (c candidate) topFactors() []string {
	type kv struct {
		key string
		val float64
	}
	var list []kv
	for k, v := range c.factors {
		if v > 0 {
			list = append(list, kv{k, v})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].val != list[j].val {
			return list[i].val > list[j].val
		}
		return list[i].key < list[j].key
	})

	out := make([]string, 0, 3)
	for i := 0; i < len(list) && i < 3; i++ {
		out = append(out, factorLabels[list[i].key])
	}
	return out
}

func (c candidate) recommendation() *contracts.Recommendation {
	opponent := c.game.AwayTeam
	where := "at home against"
	if c.side == "away" {
		opponent = c.game.HomeTeam
		where = "on the road at"
	}

	implied := impliedProbability(c.odds).Mul(hundred).Round(1).InexactFloat64()
	reasoning := fmt.Sprintf(
		"%s %s %s: %.1f%% confidence against a %.1f%% break-even price at %+d, expected value %+.3f per unit.",
		c.team, where, opponent, c.confidence, implied, c.odds, c.ev,
	)

	weights := make(map[string]float64, len(c.factors))
	for k, v := range c.factors {
		weights[k] = decimal.NewFromFloat(v).Round(2).InexactFloat64()
	}

	features := make([]string, 0, len(c.factors))
	for k := range c.factors {
		features = append(features, k)
	}
	sort.Strings(features)
	featuresJSON, _ := json.Marshal(features)

	return &contracts.Recommendation{
		Selection:     c.team + " ML",
		Market:        contracts.MarketMoneyline,
		League:        c.game.League,
		Odds:          c.odds,
		Confidence:    c.confidence,
		ExpectedValue: c.ev,
		Rationale: contracts.Rationale{
			TopFactors:     c.topFactors(),
			Reasoning:      reasoning,
			FactorWeights:  weights,
			RiskAssessment: riskAssessment(c.confidence, c.ev),
		},
		FeaturesUsed: featuresJSON,
		ModelVersion: HeuristicVersion,
	}
}
