// Command flok-rebalance solves one allocation round offline from a
// snapshot file and writes the result as JSON.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/okian/flok/internal/domain/assign"
	"github.com/okian/flok/internal/domain/fairness"
	"github.com/okian/flok/internal/domain/ledger"
	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/internal/domain/ranking"
	"github.com/okian/flok/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "flok-rebalance",
		Usage: "Offline capacity-aware allocation over a snapshot",
		Commands: []*cli.Command{
			solveCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}

var solveCmd = &cli.Command{
	Name:    "solve",
	Usage:   "Assign users to opportunities from a snapshot",
	Aliases: []string{"s"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "snapshot",
			Required: true,
			Usage:    "specify the input snapshot.json",
		},
		&cli.StringFlag{
			Name:  "out",
			Value: "-",
			Usage: "specify the output file, - for stdout",
		},
		&cli.Float64Flag{
			Name:  "tau-hours",
			Value: ledger.DefaultDecayTimescale.Hours(),
			Usage: "specify the demand decay timescale in hours",
		},
		&cli.Float64Flag{
			Name:  "k",
			Value: pulse.DefaultLiquidity,
			Usage: "specify the pulse liquidity constant",
		},
		&cli.Float64Flag{
			Name:  "lambda",
			Value: ranking.DefaultLambda,
			Usage: "specify the scarcity weight",
		},
		&cli.Float64Flag{
			Name:  "fairness-lambda",
			Value: fairness.DefaultLambda,
			Usage: "specify the cohort exposure boost",
		},
		&cli.BoolFlag{
			Name:  "fairness",
			Usage: "re-solve with under-exposed cohorts boosted",
		},
		&cli.IntFlag{
			Name:  "top-k",
			Value: 3,
			Usage: "specify the alternatives listed per user",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "specify the fit model artifact",
		},
		&cli.StringFlag{
			Name:  "solver",
			Value: assign.NameMinCostFlow,
			Usage: "specify the solver (mincostflow, greedy)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log to stderr",
		},
	},
	Action: func(ctx *cli.Context) error {
		p := params{
			tauHours:       ctx.Float64("tau-hours"),
			liquidity:      ctx.Float64("k"),
			scarcityLambda: ctx.Float64("lambda"),
			fairnessLambda: ctx.Float64("fairness-lambda"),
			fairness:       ctx.Bool("fairness"),
			topK:           ctx.Int("top-k"),
			modelPath:      ctx.String("model"),
			solver:         ctx.String("solver"),
			log:            logger.Nop(),
		}
		if ctx.Bool("verbose") {
			if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
				return err
			}
			p.log = logger.Get()
		}
		if err := p.validate(); err != nil {
			return err
		}
		return doSolve(ctx.Context, ctx.String("snapshot"), ctx.String("out"), p)
	},
}
