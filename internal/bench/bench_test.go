package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/go-aidetect/internal/bench"
	"github.com/example/go-aidetect/internal/detect"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

func TestDurations_SkipCold(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: time.Second},
		{Index: 1, Duration: 10 * time.Millisecond},
	}

	if got := bench.Durations(runs, true); len(got) != 1 || got[0] != 10*time.Millisecond {
		t.Errorf("skip cold: got %v", got)
	}

	if got := bench.Durations(runs, false); len(got) != 2 {
		t.Errorf("keep cold: got %v", got)
	}

	// A lone cold run is kept so stats are never empty.
	if got := bench.Durations(runs[:1], true); len(got) != 1 {
		t.Errorf("lone cold run: got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

type countingAnalyzer struct {
	calls int
	err   error
}

func (c *countingAnalyzer) Analyze(_ context.Context, text string) (detect.Prediction, error) {
	c.calls++
	if c.err != nil {
		return detect.Prediction{}, c.err
	}
	pred := detect.Decide(0.9)
	pred.Stats.WordCount = len(strings.Fields(text))
	return pred, nil
}

func TestRun_RecordsEachCall(t *testing.T) {
	a := &countingAnalyzer{}

	runs, err := bench.Run(context.Background(), a, "one two three", 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if a.calls != 3 || len(runs) != 3 {
		t.Fatalf("calls=%d runs=%d, want 3", a.calls, len(runs))
	}

	if !runs[0].Cold || runs[1].Cold {
		t.Errorf("only the first run should be cold: %+v", runs)
	}

	if runs[2].Words != 3 || runs[2].Label != detect.LabelAI || runs[2].Index != 2 {
		t.Errorf("unexpected run: %+v", runs[2])
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := bench.Run(context.Background(), nil, "x", 1); err == nil {
		t.Error("want error for nil analyzer")
	}

	if _, err := bench.Run(context.Background(), &countingAnalyzer{}, "x", 0); err == nil {
		t.Error("want error for zero runs")
	}

	boom := errors.New("boom")
	if _, err := bench.Run(context.Background(), &countingAnalyzer{err: boom}, "x", 2); !errors.Is(err, boom) {
		t.Errorf("want wrapped analyzer error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &countingAnalyzer{}
	if _, err := bench.Run(ctx, a, "x", 2); !errors.Is(err, context.Canceled) || a.calls != 0 {
		t.Errorf("want cancellation before first call, got %v (calls=%d)", err, a.calls)
	}
}

// ---------------------------------------------------------------------------
// Throughput
// ---------------------------------------------------------------------------

func TestWordsPerSecond(t *testing.T) {
	wps := bench.CalcWordsPerSecond(300, 500*time.Millisecond)
	if wps < 599.9 || wps > 600.1 {
		t.Errorf("want 600 words/s, got %.4f", wps)
	}

	if got := bench.CalcWordsPerSecond(300, 0); got != 0 {
		t.Errorf("want 0 for zero duration, got %.4f", got)
	}
}

// ---------------------------------------------------------------------------
// Latency threshold gate
// ---------------------------------------------------------------------------

func TestLatencyThreshold(t *testing.T) {
	tests := []struct {
		name      string
		mean      time.Duration
		threshold time.Duration
		wantErr   bool
	}{
		{"exceeds", 150 * time.Millisecond, 100 * time.Millisecond, true},
		{"below", 80 * time.Millisecond, 100 * time.Millisecond, false},
		{"exactly at", 100 * time.Millisecond, 100 * time.Millisecond, false},
		{"disabled", time.Hour, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckLatencyThreshold(tt.mean, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckLatencyThreshold(%v, %v) = %v, wantErr %v", tt.mean, tt.threshold, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func sampleRuns() []bench.RunResult {
	return []bench.RunResult{
		{Index: 0, Cold: true, Duration: 80 * time.Millisecond, Words: 12, Probability: 0.91, Label: detect.LabelAI},
		{Index: 1, Cold: false, Duration: 5 * time.Millisecond, Words: 12, Probability: 0.91, Label: detect.LabelAI},
	}
}

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs := sampleRuns()
	stats := bench.ComputeStats(bench.Durations(runs, false))

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "words", "prob", "label", "(mean)"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs := sampleRuns()
	stats := bench.ComputeStats(bench.Durations(runs, false))

	var buf bytes.Buffer
	if err := bench.FormatJSON(runs, stats, &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var out struct {
		Runs []struct {
			DurationMS float64 `json:"duration_ms"`
			Label      string  `json:"label"`
		} `json:"runs"`
		Stats struct {
			MaxMS float64 `json:"max_ms"`
		} `json:"stats"`
	}

	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Runs) != 2 || out.Runs[0].DurationMS != 80 || out.Runs[0].Label != detect.LabelAI {
		t.Errorf("unexpected runs: %+v", out.Runs)
	}

	if out.Stats.MaxMS != 80 {
		t.Errorf("max_ms = %v, want 80", out.Stats.MaxMS)
	}
}
