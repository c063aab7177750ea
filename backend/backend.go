// Package backend provides typed access to the match prediction backend
// over the shared client.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
)

// API is the typed surface of the prediction backend. It is safe for
// concurrent use and shares the connection pool of its client.
type API struct {
	client *client.Client
	log    zerolog.Logger
}

// New returns an API issuing every request through c.
func New(c *client.Client) *API {
	return &API{
		client: c,
		log: log.With().
			Str("component", "backend").
			Str("base_url", c.BaseURL()).
			Logger(),
	}
}

// Players returns every player with their current ranking, if any.
func (a *API) Players(ctx context.Context) ([]Player, error) {
	players := make([]Player, 0)
	if err := a.client.GetJSON(ctx, "/players", &players); err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}

	a.log.Debug().Int("count", len(players)).Msg("Players Fetched")
	return players, nil
}

// Predict asks every model for the probability that Player1 wins.
// An incomplete request fails with matchpoint.ErrFatal before anything is sent.
func (a *API) Predict(ctx context.Context, req PredictRequest) (Predictions, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	preds := make(Predictions)
	if err := a.client.PostJSON(ctx, "/predict", req, &preds); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	a.log.Debug().
		Str("surface", req.Surface).
		Float64("mean", preds.Mean()).
		Msg("Prediction Received")

	return preds, nil
}

func (req PredictRequest) validate() error {
	switch {
	case req.Player1 == nil || req.Player2 == nil:
		return fmt.Errorf("predict: both players are required: %w", matchpoint.ErrFatal)
	case !slices.Contains(Surfaces, req.Surface):
		return fmt.Errorf("predict: unknown surface %q: %w", req.Surface, matchpoint.ErrFatal)
	case req.TourneyLevel == "":
		return fmt.Errorf("predict: tourney level is required: %w", matchpoint.ErrFatal)
	case req.Round == "":
		return fmt.Errorf("predict: round is required: %w", matchpoint.ErrFatal)
	}

	return nil
}

// Evaluate returns the metrics of model over the processed dataset.
func (a *API) Evaluate(ctx context.Context, model string) (Metrics, error) {
	if model == "" {
		return Metrics{}, fmt.Errorf("evaluate: model is required: %w", matchpoint.ErrFatal)
	}

	var m Metrics
	if err := a.client.GetJSON(ctx, "/evaluate/"+url.PathEscape(model), &m); err != nil {
		return Metrics{}, fmt.Errorf("evaluate %s: %w", model, err)
	}

	return m, nil
}

// EvaluateAll evaluates every model in Models concurrently.
// The first failure cancels the remaining evaluations.
func (a *API) EvaluateAll(ctx context.Context) (map[string]Metrics, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]Metrics, len(Models))
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, model := range Models {
		model := model
		g.Go(func() error {
			m, err := a.Evaluate(ctx, model)
			if err != nil {
				return err
			}

			mu.Lock()
			results[model] = m
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Available reports whether the backend answers at all.
// Any HTTP response counts, including errors; only transport failures do not.
func (a *API) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed creating availability request: %w: %w", err, matchpoint.ErrFatal)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("availability: %w", err)
	}

	_ = res.Body.Close()
	return nil
}
