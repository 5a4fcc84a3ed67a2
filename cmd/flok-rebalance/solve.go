package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/flok/internal/adapters/repository"
	app "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/ledger"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/pkg/logger"
)

// snapshot is the input of one offline round. Demand states are keyed by
// opportunity id; missing entries start neutral at Now.
type snapshot struct {
	Now            time.Time               `json:"now"`
	Users          []model.User            `json:"users"`
	Opportunities  []model.Opportunity     `json:"opportunities"`
	Demand         map[string]ledger.State `json:"demand"`
	UserIDs        []string                `json:"user_ids,omitempty"`
	OpportunityIDs []string                `json:"opportunity_ids,omitempty"`
}

type params struct {
	tauHours       float64
	liquidity      float64
	scarcityLambda float64
	fairnessLambda float64
	fairness       bool
	topK           int
	modelPath      string
	solver         string
	log            logger.Logger
}

func (p params) validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case !finite(p.tauHours) || p.tauHours <= 0:
		return errors.New("invalid tau-hours")
	case !finite(p.liquidity) || p.liquidity <= 0:
		return errors.New("invalid k")
	case !finite(p.scarcityLambda) || p.scarcityLambda < 0:
		return errors.New("invalid lambda")
	case !finite(p.fairnessLambda) || p.fairnessLambda < 0:
		return errors.New("invalid fairness-lambda")
	case p.topK < 0:
		return errors.New("invalid top-k")
	}
	return nil
}

func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return snapshot{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return s, nil
}

func doSolve(ctx context.Context, snapshotFile, outFile string, p params) error {
	snap, err := readSnapshot(snapshotFile)
	if err != nil {
		return err
	}
	res, err := solve(ctx, snap, p)
	if err != nil {
		return err
	}
	if outFile == "" || outFile == "-" {
		return writeResult(os.Stdout, res)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", outFile, err)
	}
	if err := writeResult(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// solve loads the snapshot into a private service and runs one round
// without booking any seat.
func solve(ctx context.Context, snap snapshot, p params) (app.RebalanceResult, error) {
	solver, err := assign.ForName(p.solver)
	if err != nil {
		return app.RebalanceResult{}, err
	}
	now := snap.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	log := p.log
	if log == nil {
		log = logger.Nop()
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(repository.NewMemoryStore()),
		app.WithClock(func() time.Time { return now }),
		app.WithDecayTimescale(time.Duration(p.tauHours*float64(time.Hour))),
		app.WithLiquidity(p.liquidity),
		app.WithScarcityLambda(p.scarcityLambda),
		app.WithFairnessLambda(p.fairnessLambda),
		app.WithModelPath(p.modelPath),
		app.WithSolver(solver),
	)
	seed := repository.Seed{Users: snap.Users, Opportunities: snap.Opportunities}
	if err := svc.Seed(ctx, seed); err != nil {
		return app.RebalanceResult{}, fmt.Errorf("load snapshot: %w", err)
	}

	ids := make([]string, 0, len(snap.Demand))
	for id := range snap.Demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := svc.Opportunity(ctx, id); err != nil {
			return app.RebalanceResult{}, fmt.Errorf("demand for %q: %w", id, err)
		}
		if err := svc.Ledger().Restore(id, snap.Demand[id]); err != nil {
			return app.RebalanceResult{}, fmt.Errorf("demand for %q: %w", id, err)
		}
	}

	if err := svc.Start(ctx); err != nil {
		return app.RebalanceResult{}, err
	}
	defer svc.Stop()

	return svc.Rebalance(ctx, app.RebalanceRequest{
		UserIDs:        snap.UserIDs,
		OpportunityIDs: snap.OpportunityIDs,
		Fairness:       p.fairness,
		TopK:           p.topK,
	})
}

func writeResult(w io.Writer, res app.RebalanceResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
