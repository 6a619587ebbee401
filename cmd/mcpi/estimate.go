package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	guda "github.com/LynnColeArt/guda-mc"
	"github.com/LynnColeArt/guda-mc/montecarlo"
)

type estimateOptions struct {
	samples   uint64
	units     uint32
	groupSize uint32
	timeout   time.Duration
	repeat    int
	jsonOut   bool
}

func addEstimateFlags(fs *pflag.FlagSet, o *estimateOptions) {
	fs.Uint64VarP(&o.samples, "samples", "n", 10_000_000, "total number of samples requested")
	fs.Uint32VarP(&o.units, "units", "u", 1024, "number of execution units")
	fs.Uint32VarP(&o.groupSize, "group-size", "g", guda.DefaultBlockSize, "execution units per group (block)")
	fs.DurationVar(&o.timeout, "timeout", 0, "limit on the completion barrier wait (0 = none)")
	fs.IntVarP(&o.repeat, "repeat", "r", 1, "number of independent estimates to run")
	fs.BoolVar(&o.jsonOut, "json", false, "print results as JSON lines")
}

// estimateReport is the printed form of one estimate.
type estimateReport struct {
	Run              int     `json:"run"`
	Estimate         float64 `json:"estimate"`
	ErrorBound       float64 `json:"error_bound"`
	AbsError         float64 `json:"abs_error"`
	Inside           uint64  `json:"inside"`
	RequestedSamples uint64  `json:"requested_samples"`
	RealizedSamples  uint64  `json:"realized_samples"`
	Units            uint32  `json:"units"`
	Groups           uint32  `json:"groups"`
	ElapsedMS        float64 `json:"elapsed_ms"`
}

func newEstimateCmd(logger func() *slog.Logger) *cobra.Command {
	o := &estimateOptions{}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate π with a grid of execution units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1, got %d", o.repeat)
			}
			return runEstimate(cmd, o, logger())
		},
	}
	addEstimateFlags(cmd.Flags(), o)
	return cmd
}

func runEstimate(cmd *cobra.Command, o *estimateOptions, logger *slog.Logger) error {
	out := cmd.OutOrStdout()
	opts := []montecarlo.Option{
		montecarlo.WithUnitsPerGroup(o.groupSize),
		montecarlo.WithTimeout(o.timeout),
		montecarlo.WithLogger(logger),
	}

	reports := make([]estimateReport, 0, o.repeat)
	for run := 1; run <= o.repeat; run++ {
		res, err := montecarlo.Estimate(cmd.Context(), o.samples, o.units, opts...)
		if err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		r := estimateReport{
			Run:              run,
			Estimate:         res.Estimate,
			ErrorBound:       res.AbsoluteErrorBound,
			AbsError:         math.Abs(res.Estimate - math.Pi),
			Inside:           res.Inside,
			RequestedSamples: res.RequestedSamples,
			RealizedSamples:  res.RealizedSamples,
			Units:            res.Units,
			Groups:           res.Groups,
			ElapsedMS:        float64(res.Elapsed.Microseconds()) / 1000,
		}
		reports = append(reports, r)
		if o.jsonOut {
			if err := json.NewEncoder(out).Encode(r); err != nil {
				return err
			}
		}
	}

	if !o.jsonOut {
		printReports(out, reports)
	}
	return nil
}

func printReports(w io.Writer, reports []estimateReport) {
	fmt.Fprintln(w, "GUDA Monte Carlo π")
	fmt.Fprintln(w, strings.Repeat("=", 62))
	for _, r := range reports {
		fmt.Fprintf(w, "run %-3d π ≈ %.6f ± %.6f  |err| %.6f  %d samples  %.1f ms\n",
			r.Run, r.Estimate, r.ErrorBound, r.AbsError, r.RealizedSamples, r.ElapsedMS)
	}
	if len(reports) > 1 {
		var sum float64
		for _, r := range reports {
			sum += r.Estimate
		}
		mean := sum / float64(len(reports))
		fmt.Fprintln(w, strings.Repeat("=", 62))
		fmt.Fprintf(w, "mean of %d runs: %.6f  |err| %.6f\n", len(reports), mean, math.Abs(mean-math.Pi))
	}
}
