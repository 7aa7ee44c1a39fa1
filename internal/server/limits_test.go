package server_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-aidetect/internal/detect"
	"github.com/example/go-aidetect/internal/server"
)

// blockingAnalyzer blocks until its context is done or release is closed.
type blockingAnalyzer struct {
	stubAnalyzer
	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, _ string) (detect.Prediction, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)

	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return detect.Prediction{}, ctx.Err()
	case <-b.release:
		return detect.Decide(0.2), nil
	}
}

func TestClassify_OversizedTextRejectedAs413(t *testing.T) {
	stub := &stubAnalyzer{pred: aiPrediction()}
	h := server.NewHandler(stub, server.WithMaxTextBytes(10))

	rec := postJSON(h, "/api/v1/classify", `{"text":"`+strings.Repeat("x", 11)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}

	if stub.calls != 0 {
		t.Fatal("analyzer must not run for oversized text")
	}
}

func TestClassify_TextAtExactLimitIsAccepted(t *testing.T) {
	h := server.NewHandler(&stubAnalyzer{pred: aiPrediction()}, server.WithMaxTextBytes(5))

	rec := postJSON(h, "/api/v1/classify", `{"text":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 for exactly-limit text, got %d", rec.Code)
	}
}

func TestClassify_RequestTimeoutIs504(t *testing.T) {
	b := &blockingAnalyzer{release: make(chan struct{})}
	h := server.NewHandler(b, server.WithRequestTimeout(20*time.Millisecond))

	start := time.Now()
	rec := postJSON(h, "/api/v1/classify", `{"text":"hello"}`)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestSubmit_RequestTimeoutShowsError(t *testing.T) {
	b := &blockingAnalyzer{release: make(chan struct{})}
	h := server.NewHandler(b, server.WithRequestTimeout(20*time.Millisecond))

	rec := postForm(h, "hello")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "timed out") {
		t.Fatal("expected timeout message on page")
	}
}

func TestClassify_WorkerLimitBoundsConcurrency(t *testing.T) {
	b := &blockingAnalyzer{release: make(chan struct{})}
	h := server.NewHandler(b, server.WithWorkers(2), server.WithRequestTimeout(5*time.Second))

	const requests = 6

	var wg sync.WaitGroup
	codes := make(chan int, requests)

	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- postJSON(h, "/api/v1/classify", `{"text":"hello"}`).Code
		}()
	}

	// Let the first two requests occupy both slots.
	deadline := time.Now().Add(2 * time.Second)
	for b.inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(30 * time.Millisecond)
	close(b.release)
	wg.Wait()
	close(codes)

	for code := range codes {
		if code != http.StatusOK {
			t.Fatalf("want 200 for every request, got %d", code)
		}
	}

	if peak := b.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency %d exceeds worker limit 2", peak)
	}
}

func TestClassify_CancelledWhileWaitingForWorker(t *testing.T) {
	b := &blockingAnalyzer{release: make(chan struct{})}
	defer close(b.release)

	h := server.NewHandler(b, server.WithWorkers(1), server.WithRequestTimeout(5*time.Second))

	go func() { _ = postJSON(h, "/api/v1/classify", `{"text":"first"}`) }()

	deadline := time.Now().Add(2 * time.Second)
	for b.inFlight.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := postJSONContext(ctx, h, "/api/v1/classify", `{"text":"second"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}
