package tfserving

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestClassifySendsInstances(t *testing.T) {
	var got predictRequest

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/lstm:predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"predictions":[[0.83]]}`))
	})

	c, err := New(srv.URL+"/", "lstm", 3)
	require.NoError(t, err)

	p, err := c.Classify(context.Background(), []int64{4, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.83, p, 1e-9)
	assert.Equal(t, [][]int64{{4, 1, 0}}, got.Instances)
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "serving error field", status: http.StatusOK, body: `{"error":"Servable not found"}`},
		{name: "empty predictions", status: http.StatusOK, body: `{"predictions":[]}`},
		{name: "empty row", status: http.StatusOK, body: `{"predictions":[[]]}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
		{name: "out of range", status: http.StatusOK, body: `{"predictions":[[1.2]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c, err := New(srv.URL, "lstm", 2)
			require.NoError(t, err)

			_, err = c.Classify(context.Background(), []int64{0, 0})
			assert.Error(t, err)
		})
	}
}

func TestClassifyOutOfRangeIsTyped(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[[-0.5]]}`))
	})

	c, err := New(srv.URL, "lstm", 1)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []int64{0})
	assert.True(t, errors.Is(err, ErrProbabilityRange))
}

func TestClassifyRejectsWrongLength(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "lstm", 4)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []int64{1})
	assert.Error(t, err)
}

func TestClassifyHonoursContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c, err := New(srv.URL, "lstm", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Classify(ctx, []int64{0})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewValidates(t *testing.T) {
	_, err := New("", "lstm", 1)
	assert.Error(t, err)

	_, err = New("http://x", "", 1)
	assert.Error(t, err)

	_, err = New("http://x", "lstm", 0)
	assert.Error(t, err)

	c, err := New(" http://x/ ", "lstm", 1, WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	assert.Equal(t, "http://x/v1/models/lstm:predict", c.PredictURL())
	assert.Equal(t, 1, c.MaxLen())
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/lstm" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"model_version_status":[{"state":"AVAILABLE"}]}`))
	})

	ok, err := New(srv.URL, "lstm", 1)
	require.NoError(t, err)
	assert.NoError(t, ok.Ping(context.Background()))

	missing, err := New(srv.URL, "other", 1)
	require.NoError(t, err)
	assert.Error(t, missing.Ping(context.Background()))
}
