package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/backend"
	"github.com/courtside/matchpoint/client"
	"github.com/courtside/matchpoint/stats"
)

// appContext is bound to every command's Run method.
type appContext struct {
	ctx        context.Context
	client     *client.Client
	api        *backend.API
	stats      *stats.Stats
	cfg        config
	configPath string
	out        io.Writer
}

type playersCmd struct {
	Search string `short:"s" help:"Only list players whose name contains this text"`
	Limit  int    `default:"0" help:"Maximum number of players to list (0 lists all)"`
}

func (cmd *playersCmd) Run(app *appContext) error {
	players, err := app.api.Players(app.ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tHAND\tIOC\tRANK\tPOINTS")

	listed := 0
	for _, p := range players {
		if cmd.Search != "" && !strings.Contains(strings.ToLower(p.Name()), strings.ToLower(cmd.Search)) {
			continue
		}

		if cmd.Limit > 0 && listed == cmd.Limit {
			break
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name(), str(p.Hand), str(p.IOC), num(p.Rank), num(p.Points))
		listed++
	}

	return w.Flush()
}

type predictCmd struct {
	P1      string `name:"p1" required:"" help:"Name of the first player"`
	P2      string `name:"p2" required:"" help:"Name of the second player"`
	Surface string `required:"" enum:"Hard,Clay,Grass,Carpet" help:"Court surface (Hard,Clay,Grass,Carpet)"`
	Level   string `default:"A" help:"Tournament level (G,M,A,F,D)"`
	Round   string `default:"R32" help:"Round (R128,R64,R32,R16,QF,SF,F,RR)"`
}

func (cmd *predictCmd) Run(app *appContext) error {
	players, err := app.api.Players(app.ctx)
	if err != nil {
		return err
	}

	p1, err := findPlayer(players, cmd.P1)
	if err != nil {
		return err
	}

	p2, err := findPlayer(players, cmd.P2)
	if err != nil {
		return err
	}

	now := time.Now()
	s1, s2 := p1.Stats(now), p2.Stats(now)

	preds, err := app.api.Predict(app.ctx, backend.PredictRequest{
		Player1:      &s1,
		Player2:      &s2,
		Surface:      cmd.Surface,
		TourneyLevel: cmd.Level,
		Round:        cmd.Round,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "MODEL\tP(%s)\n", p1.Name())
	for _, model := range preds.Models() {
		_, _ = fmt.Fprintf(w, "%s\t%.3f\n", model, preds[model])
	}
	_, _ = fmt.Fprintf(w, "mean\t%.3f\n", preds.Mean())
	if err := w.Flush(); err != nil {
		return err
	}

	favourite := p1
	if preds.Favourite() == 2 {
		favourite = p2
	}

	_, err = fmt.Fprintf(app.out, "\nFavourite: %s\n", favourite.Name())
	return err
}

// findPlayer returns the player whose name equals query, ignoring case, or
// failing that the only player whose name contains it.
func findPlayer(players []backend.Player, query string) (backend.Player, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return backend.Player{}, fmt.Errorf("empty player name: %w", matchpoint.ErrFatal)
	}

	var matches []backend.Player
	for _, p := range players {
		name := strings.ToLower(p.Name())
		if name == q {
			return p, nil
		}

		if strings.Contains(name, q) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return backend.Player{}, fmt.Errorf("no player matches %q: %w", query, matchpoint.ErrFatal)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, p := range matches {
			names = append(names, p.Name())
		}
		return backend.Player{}, fmt.Errorf("%q matches %d players (%s): %w",
			query, len(matches), strings.Join(names, ", "), matchpoint.ErrFatal)
	}
}

type evaluateCmd struct {
	Model string `arg:"" optional:"" help:"Model to evaluate"`
	All   bool   `help:"Evaluate every model"`
}

func (cmd *evaluateCmd) Run(app *appContext) error {
	results := make(map[string]backend.Metrics)

	switch {
	case cmd.All || cmd.Model == "":
		all, err := app.api.EvaluateAll(app.ctx)
		if err != nil {
			return err
		}
		results = all

	default:
		m, err := app.api.Evaluate(app.ctx, cmd.Model)
		if err != nil {
			return err
		}
		results[cmd.Model] = m
	}

	w := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tACCURACY\tPRECISION\tRECALL\tF1")

	for _, model := range backend.Models {
		if m, ok := results[model]; ok {
			writeMetrics(w, model, m)
			delete(results, model)
		}
	}

	// models outside the known list
	for model, m := range results {
		writeMetrics(w, model, m)
	}

	return w.Flush()
}

func writeMetrics(w io.Writer, model string, m backend.Metrics) {
	_, _ = fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", model, m.Accuracy, m.Precision, m.Recall, m.F1Score)
}

type getCmd struct {
	Path    string         `arg:"" help:"Path relative to the base URL, or an absolute URL"`
	Timeout *time.Duration `help:"Override the request timeout (0 disables)"`
}

func (cmd *getCmd) Run(app *appContext) error {
	var opts []client.RequestOption
	if cmd.Timeout != nil {
		opts = append(opts, client.Timeout(*cmd.Timeout))
	}

	res, err := app.client.Get(app.ctx, cmd.Path, opts...)
	if err != nil {
		if se, ok := client.AsStatusError(err); ok && len(se.Body) > 0 {
			_, _ = app.out.Write(se.Body)
		}
		return err
	}

	body := matchpoint.LimitReadCloser(res.Body)
	defer func() { _ = body.Close() }()

	_, err = io.Copy(app.out, body)
	return err
}

func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *f)
}
