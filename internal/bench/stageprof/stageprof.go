// Package stageprof times each preprocessing and inference stage of the
// classification pipeline, labelling them for CPU profiles.
package stageprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/example/go-aidetect/internal/detect"
	"github.com/example/go-aidetect/internal/sequence"
	textpkg "github.com/example/go-aidetect/internal/text"
)

// Options controls a profiling session.
type Options struct {
	Input      string
	Runs       int
	Warmup     int
	MaxLen     int
	CPUProfile string
}

// Timings accumulates per-stage durations.
type Timings struct {
	Normalize time.Duration
	Tokenize  time.Duration
	Encode    time.Duration
	Pad       time.Duration
	Classify  time.Duration
	Total     time.Duration
	Tokens    int
	Runs      int
}

// Profile runs the pipeline stage by stage. Warmup runs are excluded from
// the returned timings and from the CPU profile.
func Profile(ctx context.Context, v detect.Vocabulary, c detect.Classifier, opts Options) (Timings, error) {
	if v == nil || c == nil {
		return Timings{}, errors.New("vocabulary and classifier are required")
	}

	if opts.Runs < 1 {
		return Timings{}, fmt.Errorf("runs must be >= 1, got %d", opts.Runs)
	}

	if opts.MaxLen < 1 {
		opts.MaxLen = sequence.DefaultMaxLen
	}

	if err := textpkg.Validate(opts.Input); err != nil {
		return Timings{}, err
	}

	for i := range opts.Warmup {
		if _, err := runOnce(ctx, v, c, opts); err != nil {
			return Timings{}, fmt.Errorf("warmup run %d failed: %w", i+1, err)
		}
	}

	if opts.CPUProfile != "" {
		f, err := os.Create(opts.CPUProfile)
		if err != nil {
			return Timings{}, fmt.Errorf("create cpuprofile: %w", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return Timings{}, fmt.Errorf("start cpuprofile: %w", err)
		}

		defer pprof.StopCPUProfile()
	}

	var agg Timings

	for i := range opts.Runs {
		t, err := runOnce(ctx, v, c, opts)
		if err != nil {
			return Timings{}, fmt.Errorf("profiled run %d failed: %w", i+1, err)
		}

		agg.Normalize += t.Normalize
		agg.Tokenize += t.Tokenize
		agg.Encode += t.Encode
		agg.Pad += t.Pad
		agg.Classify += t.Classify
		agg.Total += t.Total
		agg.Tokens = t.Tokens
	}

	agg.Runs = opts.Runs

	return agg, nil
}

// WriteReport prints average stage times and their share of the total.
func WriteReport(w io.Writer, input string, t Timings) {
	if t.Runs < 1 {
		return
	}

	div := float64(t.Runs)
	avg := func(d time.Duration) float64 { return d.Seconds() * 1000 / div }

	stages := []struct {
		name string
		d    time.Duration
	}{
		{"normalize", t.Normalize},
		{"tokenize", t.Tokenize},
		{"encode", t.Encode},
		{"pad", t.Pad},
		{"classify", t.Classify},
	}

	fmt.Fprintf(w, "text: %q\n", truncate(input, 60))
	fmt.Fprintf(w, "runs: %d\n", t.Runs)
	fmt.Fprintf(w, "tokens: %d\n", t.Tokens)

	for _, s := range stages {
		fmt.Fprintf(w, "avg_%s_ms: %.3f\n", s.name, avg(s.d))
	}

	total := avg(t.Total)
	fmt.Fprintf(w, "avg_total_ms: %.3f\n", total)

	if total > 0 {
		for _, s := range stages {
			fmt.Fprintf(w, "share_%s_pct: %.2f\n", s.name, 100*avg(s.d)/total)
		}
	}
}

func runOnce(ctx context.Context, v detect.Vocabulary, c detect.Classifier, opts Options) (Timings, error) {
	var out Timings
	startTotal := time.Now()

	var (
		normalized string
		tokens     []string
		encoded    []int64
		padded     []int64
	)

	stage := func(name string, d *time.Duration, fn func(context.Context)) {
		pprof.Do(ctx, pprof.Labels("stage", name), func(ctx context.Context) {
			start := time.Now()
			fn(ctx)
			*d = time.Since(start)
		})
	}

	stage("normalize", &out.Normalize, func(context.Context) {
		normalized = textpkg.Normalize(opts.Input)
	})
	stage("tokenize", &out.Tokenize, func(context.Context) {
		tokens = textpkg.Tokenize(normalized)
	})
	stage("encode", &out.Encode, func(context.Context) {
		encoded = sequence.Encode(tokens, v)
	})
	stage("pad", &out.Pad, func(context.Context) {
		padded = sequence.Pad(encoded, opts.MaxLen, v.PadIndex())
	})

	var classifyErr error

	stage("classify", &out.Classify, func(ctx context.Context) {
		_, classifyErr = c.Classify(ctx, padded)
	})

	if classifyErr != nil {
		return out, fmt.Errorf("classify: %w", classifyErr)
	}

	out.Total = time.Since(startTotal)
	out.Tokens = len(tokens)

	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
