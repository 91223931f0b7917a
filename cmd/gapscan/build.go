package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"gapscan/pkg/bucket"
	"gapscan/pkg/freqmap"
	"gapscan/pkg/primes"
	"gapscan/pkg/storage"
)

func newBuildCmd() *cobra.Command {
	var (
		input         string
		output        string
		dbName        string
		modulus       uint64
		gapCategories bool
		start         int
		count         int
		searchBound   uint64
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan prime pairs and build a frequency map",
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
			if searchBound == 0 {
				searchBound = cfg.SearchBound
			}

			seq, err := primes.LoadFile(input)
			if err != nil {
				return err
			}
			log.Info("prime sequence loaded",
				zap.String("file", input), zap.Int("primes", seq.Len()))

			scheme := bucket.Scheme{Modulus: modulus}
			if gapCategories {
				t := cfg.GapThresholds
				scheme.Gaps = &t
			}

			m, err := freqmap.Build(seq, freqmap.Config{
				Scheme:        scheme,
				Start:         start,
				Count:         count,
				SearchBound:   searchBound,
				ProgressEvery: 100_000,
				Logger:        log,
			})
			if err != nil {
				return err
			}
			log.Info("map built",
				zap.String("scheme", scheme.Name()),
				zap.Int("pairs", count),
				zap.Uint64("skipped", m.Skipped))

			if output != "" {
				if err := m.WriteScoreFile(output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "score map written to %s (skipped %d)\n", output, m.Skipped)
			}
			if dbName != "" {
				db, err := sql.Open("sqlite", cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				ctx := context.Background()
				if err := storage.EnsureTables(ctx, db); err != nil {
					return err
				}
				if err := storage.SaveMap(ctx, db, dbName, m, start, count); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "map %q stored in %s\n", dbName, cfg.DBPath)
			}
			if output == "" && dbName == "" {
				return fmt.Errorf("nothing to do: set --output and/or --store")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "prime list file (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "score-map JSON output path")
	cmd.Flags().StringVar(&dbName, "store", "", "store the map in sqlite under this name")
	cmd.Flags().Uint64Var(&modulus, "modulus", 6, "residue modulus (6, 30 or 210)")
	cmd.Flags().BoolVar(&gapCategories, "gap-categories", false, "cross residues with gap categories")
	cmd.Flags().IntVar(&start, "start", -1, "first pair index (default from config)")
	cmd.Flags().IntVar(&count, "count", 0, "number of pairs to scan (default from config)")
	cmd.Flags().Uint64Var(&searchBound, "search-bound", 0, "nearest-prime search radius (default from config)")
	return cmd
}
