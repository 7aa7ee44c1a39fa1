package main

import (
	"errors"
	"time"

	"github.com/example/go-aidetect/internal/bench"
	"github.com/example/go-aidetect/internal/bench/stageprof"
	"github.com/example/go-aidetect/internal/config"
	"github.com/example/go-aidetect/internal/detect"
	"github.com/example/go-aidetect/internal/vocab"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		text       string
		file       string
		runs       int
		format     string
		maxLatency time.Duration
		stages     bool
		warmup     int
		cpuprofile string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark classification latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			input, err := readInput(cmd.InOrStdin(), text, file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if stages {
				return runStageProfile(cmd, cfg, stageprof.Options{
					Input:      input,
					Runs:       runs,
					Warmup:     warmup,
					MaxLen:     cfg.Classifier.MaxSeqLen,
					CPUProfile: cpuprofile,
				})
			}

			d, err := detect.Load(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			results, err := bench.Run(cmd.Context(), d, input, runs)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results, false))

			switch format {
			case "json":
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, stats, out)
			}

			warm := bench.ComputeStats(bench.Durations(results, true))
			return bench.CheckLatencyThreshold(warm.Mean, maxLatency)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to classify for each run")
	cmd.Flags().StringVar(&file, "file", "", "Read text from file (\"-\" for stdin)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of classification runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().DurationVar(&maxLatency, "max-latency", 0, "Exit non-zero if mean warm latency exceeds this value (0 = disabled)")
	cmd.Flags().BoolVar(&stages, "stages", false, "Report per-stage timings instead of end-to-end runs")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "Warmup runs excluded from --stages timings")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile with per-stage labels (--stages only)")

	return cmd
}

func runStageProfile(cmd *cobra.Command, cfg config.Config, opts stageprof.Options) error {
	backend, err := config.NormalizeBackend(cfg.Classifier.Backend)
	if err != nil {
		return err
	}

	v, err := vocab.LoadCached(cfg.Paths.VocabPath)
	if err != nil {
		return err
	}

	c, err := detect.LoadClassifier(cfg, backend)
	if err != nil {
		return err
	}
	defer c.Close()

	t, err := stageprof.Profile(cmd.Context(), v, c, opts)
	if err != nil {
		return err
	}

	stageprof.WriteReport(cmd.OutOrStdout(), opts.Input, t)
	return nil
}
