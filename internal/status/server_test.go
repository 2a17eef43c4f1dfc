package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/storage/memory"
	"github.com/JakeFAU/sitecrawler/internal/store"
)

type fixedSnapshot crawler.Snapshot

func (f fixedSnapshot) Snapshot() crawler.Snapshot { return crawler.Snapshot(f) }

type panicSnapshot struct{}

func (panicSnapshot) Snapshot() crawler.Snapshot { panic("boom") }

func mustServer(t *testing.T, crawl Snapshotter, opts Options) *Server {
	t.Helper()
	srv, err := NewServer(crawl, opts)
	require.NoError(t, err)
	return srv
}

func serve(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry()})
	rec := serve(t, srv, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	snap := fixedSnapshot{
		RunID:          "run-1",
		RootURL:        "http://www.test.com",
		State:          crawler.StateCompleted,
		Total:          4,
		Succeeded:      3,
		Failed:         1,
		Progress:       100,
		FullyProcessed: true,
		ElapsedSeconds: 1.5,
	}
	srv := mustServer(t, snap, Options{Gatherer: prometheus.NewRegistry()})
	rec := serve(t, srv, http.MethodGet, "/v1/crawl")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "completed", body["state"])
	assert.InDelta(t, 4, body["total"], 0)
	assert.InDelta(t, 100, body["progress"], 0)
	assert.Equal(t, true, body["fully_processed"])
}

func TestSnapshotWithoutCrawler(t *testing.T) {
	t.Parallel()

	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry()})
	rec := serve(t, srv, http.MethodGet, "/v1/crawl")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	srv := mustServer(t, panicSnapshot{}, Options{Gatherer: prometheus.NewRegistry()})
	rec := serve(t, srv, http.MethodGet, "/v1/crawl")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "crawler_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	srv := mustServer(t, nil, Options{Gatherer: reg})
	rec := serve(t, srv, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crawler_test_total 3")
}

func TestRequestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv := mustServer(t, nil, Options{Gatherer: reg, Registerer: reg})
	serve(t, srv, http.MethodGet, "/healthz")
	serve(t, srv, http.MethodGet, "/healthz")
	serve(t, srv, http.MethodGet, "/v1/crawl")

	rec := serve(t, srv, http.MethodGet, "/metrics")
	body := rec.Body.String()
	assert.Contains(t, body, `status_http_requests_total{code="200",method="GET",route="/healthz"} 2`)
	assert.Contains(t, body, `status_http_requests_total{code="503",method="GET",route="/v1/crawl"} 1`)
	assert.Contains(t, body, "status_http_request_duration_seconds")

	_, err := NewServer(nil, Options{Gatherer: reg, Registerer: reg})
	assert.Error(t, err, "duplicate registration")
}

func TestRunsRoutesDisabledWithoutRepository(t *testing.T) {
	t.Parallel()

	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry()})
	rec := serve(t, srv, http.MethodGet, "/v1/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsRoutes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewOutcomeStore()
	runID := uuid.New()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.StartRun(ctx, runID, "http://www.test.com", start))
	note := "crawler: invalid url"
	require.NoError(t, repo.RecordOutcomes(ctx, []store.URLOutcome{
		{RunID: runID, URL: "http://www.test.com", Outcome: store.OutcomeSucceeded, RecordedAt: start},
		{RunID: runID, URL: "http://www.test.com/file.pdf", Outcome: store.OutcomeFailed, Error: &note, RecordedAt: start},
	}))
	require.NoError(t, repo.FinishRun(ctx, runID, start.Add(time.Second), store.RunCompleted,
		store.RunCounts{Total: 2, Succeeded: 1, Failed: 1}, nil))

	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry(), Repository: repo})

	t.Run("list", func(t *testing.T) {
		rec := serve(t, srv, http.MethodGet, "/v1/runs?status=completed")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Runs []store.Run `json:"runs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Runs, 1)
		assert.Equal(t, runID, body.Runs[0].ID)
		assert.Equal(t, 2, body.Runs[0].Counts.Total)
	})

	t.Run("get", func(t *testing.T) {
		rec := serve(t, srv, http.MethodGet, "/v1/runs/"+runID.String())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := serve(t, srv, http.MethodGet, "/v1/runs/"+uuid.NewString())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get malformed", func(t *testing.T) {
		rec := serve(t, srv, http.MethodGet, "/v1/runs/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("outcomes filtered", func(t *testing.T) {
		rec := serve(t, srv, http.MethodGet, "/v1/runs/"+runID.String()+"/outcomes?outcome=failed")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Outcomes []store.URLOutcome `json:"outcomes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Outcomes, 1)
		assert.Equal(t, "http://www.test.com/file.pdf", body.Outcomes[0].URL)
	})

	for _, target := range []string{
		"/v1/runs?status=bogus",
		"/v1/runs?limit=0",
		"/v1/runs?offset=-1",
		"/v1/runs/" + runID.String() + "/outcomes?outcome=maybe",
	} {
		t.Run("bad request "+target, func(t *testing.T) {
			rec := serve(t, srv, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := mustServer(t, nil, Options{Gatherer: prometheus.NewRegistry()})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
