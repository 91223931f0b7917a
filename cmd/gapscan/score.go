package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gapscan/pkg/bucket"
	"gapscan/pkg/engine"
	"gapscan/pkg/freqmap"
)

func newScoreCmd() *cobra.Command {
	var (
		mapPath       string
		modulus       uint64
		gapCategories bool
		anchor        uint64
		gap           uint64
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Look an anchor up in a score map",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scheme := bucket.Scheme{Modulus: modulus}
			if gapCategories {
				t := cfg.GapThresholds
				scheme.Gaps = &t
			}
			t, err := engine.LoadScoreFile(mapPath, scheme)
			if err != nil {
				return err
			}
			rate, err := t.Score(anchor, gap)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "anchor=%d bucket=%s rate=%s\n",
				anchor, scheme.Classify(anchor, gap).String(), freqmap.FormatRate(rate))
			if gap > 0 {
				fmt.Fprintf(out, "weighted=%g\n", engine.Weighted(rate, gap))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mapPath, "map", "", "score-map JSON file")
	cmd.Flags().Uint64Var(&modulus, "modulus", 6, "residue modulus the map was built with")
	cmd.Flags().BoolVar(&gapCategories, "gap-categories", false, "map was built with gap categories")
	cmd.Flags().Uint64Var(&anchor, "anchor", 0, "anchor value p_n + p_n+1")
	cmd.Flags().Uint64Var(&gap, "gap", 0, "gap value p_n+1 - p_n")
	cmd.MarkFlagRequired("map")
	cmd.MarkFlagRequired("anchor")
	return cmd
}
