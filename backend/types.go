package backend

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Models served by the backend, in the order it reports them.
var Models = []string{
	"logistic_regression",
	"svm",
	"random_forest",
	"knn",
	"gradient_boosting",
	"xgboost",
}

// Surfaces accepted by Predict.
var Surfaces = []string{"Hard", "Clay", "Grass", "Carpet"}

// Player is a player record joined with the current ranking.
// Numeric columns arrive as floats and are nil when the source has no value.
type Player struct {
	ID         int64    `json:"player_id"`
	FirstName  *string  `json:"name_first"`
	LastName   *string  `json:"name_last"`
	Hand       *string  `json:"hand"`
	DOB        *float64 `json:"dob"`
	IOC        *string  `json:"ioc"`
	Height     *float64 `json:"height"`
	WikidataID *string  `json:"wikidata_id"`

	RankingDate *float64 `json:"ranking_date"`
	Rank        *float64 `json:"rank"`
	RankedID    *float64 `json:"player"`
	Points      *float64 `json:"points"`
}

// Name returns "First Last", or whichever part is known.
func (p Player) Name() string {
	switch {
	case p.FirstName != nil && p.LastName != nil:
		return *p.FirstName + " " + *p.LastName
	case p.LastName != nil:
		return *p.LastName
	case p.FirstName != nil:
		return *p.FirstName
	default:
		return strconv.FormatInt(p.ID, 10)
	}
}

// Birthdate parses the YYYYMMDD date of birth.
func (p Player) Birthdate() (time.Time, bool) {
	if p.DOB == nil {
		return time.Time{}, false
	}

	t, err := time.Parse("20060102", strconv.FormatInt(int64(*p.DOB), 10))
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// Stats builds the prediction input for p with the age taken at asOf.
func (p Player) Stats(asOf time.Time) PlayerStats {
	s := PlayerStats{
		Hand:       p.Hand,
		Height:     p.Height,
		RankPoints: p.Points,
	}

	if p.Rank != nil {
		rank := int(*p.Rank)
		s.Rank = &rank
	}

	if dob, ok := p.Birthdate(); ok {
		age := asOf.Sub(dob).Hours() / 24 / 365.25
		age = math.Round(age*10) / 10
		s.Age = &age
	}

	return s
}

// PlayerStats describes one side of a match for Predict.
// Nil values are sent as null and imputed by the backend.
type PlayerStats struct {
	Hand       *string  `json:"hand"`
	Height     *float64 `json:"height"`
	Age        *float64 `json:"age"`
	Rank       *int     `json:"rank"`
	RankPoints *float64 `json:"rank_points"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Player1      *PlayerStats `json:"player1"`
	Player2      *PlayerStats `json:"player2"`
	Surface      string       `json:"surface"`
	TourneyLevel string       `json:"tourney_level"`
	Round        string       `json:"round"`
}

// Predictions maps a model name to its probability that player1 wins.
type Predictions map[string]float64

// Mean returns the probability that player1 wins averaged over all models.
func (p Predictions) Mean() float64 {
	if len(p) == 0 {
		return 0
	}

	var sum float64
	for _, v := range p {
		sum += v
	}

	return sum / float64(len(p))
}

// Favourite returns 1 or 2 for the player the models favour on average.
// Ties go to player1.
func (p Predictions) Favourite() int {
	if p.Mean() < 0.5 {
		return 2
	}
	return 1
}

// Models returns the model names in p, sorted.
func (p Predictions) Models() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Metrics is the evaluation of one model over the processed dataset.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
}
