package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gapscan/pkg/bucket"
	"gapscan/pkg/engine"
	"gapscan/pkg/predict"
	"gapscan/pkg/primes"
)

func newBenchCmd() *cobra.Command {
	var (
		input      string
		coarsePath string
		finePath   string
		coarseMod  uint64
		fineMod    uint64
		strategy   string
		start      int
		count      int
		poolSize   int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark a successor predictor over a prime window",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if input == "" {
				input = cfg.PrimeFile
			}
			if start < 0 {
				start = cfg.StartIndex
			}
			if count <= 0 {
				count = cfg.PairCount
			}
			if poolSize <= 0 {
				poolSize = cfg.Candidates
			}

			seq, err := primes.LoadFile(input)
			if err != nil {
				return err
			}
			coarse, err := engine.LoadScoreFile(coarsePath, bucket.Scheme{Modulus: coarseMod})
			if err != nil {
				return err
			}
			var fine *engine.Table
			if finePath != "" {
				if fine, err = engine.LoadScoreFile(finePath, bucket.Scheme{Modulus: fineMod}); err != nil {
					return err
				}
			}
			p, err := predict.ByName(strategy, coarse, fine)
			if err != nil {
				return err
			}

			res, err := predict.Run(seq, p, predict.BenchConfig{
				Start:         start,
				Count:         count,
				Candidates:    poolSize,
				ProgressEvery: 100_000,
				Logger:        log,
			})
			if err != nil {
				return err
			}
			log.Info("bench finished",
				zap.String("predictor", p.Name()),
				zap.Uint64("predictions", res.Predictions),
				zap.Uint64("hits", res.Hits),
				zap.Uint64("overrides", res.Overrides))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d hits (%.4f%%), %d overrides\n",
				p.Name(), res.Hits, res.Predictions, res.HitRate()*100, res.Overrides)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "prime list file (default from config)")
	cmd.Flags().StringVar(&coarsePath, "map", "", "coarse score-map JSON file")
	cmd.Flags().StringVar(&finePath, "fine-map", "", "fine score-map JSON file (tie-break/adaptive)")
	cmd.Flags().Uint64Var(&coarseMod, "modulus", 6, "coarse map modulus")
	cmd.Flags().Uint64Var(&fineMod, "fine-modulus", 210, "fine map modulus")
	cmd.Flags().StringVar(&strategy, "strategy", "weighted", "weighted, signature, chained-signature, tie-break, recursive or adaptive")
	cmd.Flags().IntVar(&start, "start", -1, "first index benchmarked (default from config)")
	cmd.Flags().IntVar(&count, "count", 0, "number of predictions (default from config)")
	cmd.Flags().IntVar(&poolSize, "candidates", 0, "candidate pool size (default from config)")
	cmd.MarkFlagRequired("map")
	return cmd
}
