package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/domain/reading"
	"github.com/oshokin/temperature-monitor/internal/repository/readings"
	"github.com/oshokin/temperature-monitor/internal/service/query"
)

var (
	now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	errTestBackend = errors.New("test backend down")
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// failingQuerier fails every read.
type failingQuerier struct{}

func (failingQuerier) Latest(context.Context) (*reading.Reading, error) {
	return nil, errTestBackend
}

func (failingQuerier) History(context.Context, *time.Time, *time.Time) ([]reading.Reading, error) {
	return nil, errTestBackend
}

func (failingQuerier) Hourly(context.Context) ([]reading.Reading, error) {
	return nil, errTestBackend
}

func (failingQuerier) Classify(float64) query.Classification {
	return query.Classification{}
}

// newRouter serves a memory repository seeded with values keyed by age.
func newRouter(t *testing.T, values map[time.Duration]float64, opts ...Option) *gin.Engine {
	t.Helper()

	clock := func() time.Time { return now }
	repo := readings.NewMemoryRepository(readings.WithClock(clock))

	for ago, v := range values {
		require.NoError(t, repo.Store(context.Background(), reading.New(v, now.Add(-ago))))
	}

	svc := query.New(repo, alert.Thresholds{High: 23.5, NormalMargin: 1}, readings.DefaultRetention, query.WithClock(clock))

	return NewRouter(svc, append([]Option{WithClock(clock)}, opts...)...)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

// TestHealth reports healthy with a timestamp.
func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, newRouter(t, nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, now.Format(time.RFC3339Nano), body["timestamp"])
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

// TestRequestID echoes a caller supplied ID.
func TestRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "probe-42")

	rec := httptest.NewRecorder()
	newRouter(t, nil).ServeHTTP(rec, req)

	require.Equal(t, "probe-42", rec.Header().Get(RequestIDHeader))
}

// TestLatest returns 404 on an empty store and the flags otherwise.
func TestLatest(t *testing.T) {
	t.Parallel()

	rec := get(t, newRouter(t, nil), "/temperature/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"No temperature readings available"}`, rec.Body.String())

	rec = get(t, newRouter(t, map[time.Duration]float64{time.Hour: 20, time.Minute: 24}), "/temperature/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var body LatestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.InDelta(t, 24.0, body.Temperature, 1e-9)
	require.True(t, body.CollectedAt.Equal(now.Add(-time.Minute)))
	require.True(t, body.IsAlert)
	require.False(t, body.IsNormal)
}

// TestHistory covers defaults, explicit bounds and parameter errors.
func TestHistory(t *testing.T) {
	t.Parallel()

	router := newRouter(t, map[time.Duration]float64{
		30 * time.Minute: 19,
		20 * time.Minute: 20,
		10 * time.Minute: 21,
	})

	var rows []ReadingResponse

	rec := get(t, router, "/temperature/history")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	require.InDelta(t, 21.0, rows[0].Temperature, 1e-9)

	rec = get(t, router, "/temperature/history?start_time=2026-07-01T11:35:00Z&end_time=2026-07-01T11:45:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.InDelta(t, 20.0, rows[0].Temperature, 1e-9)

	rec = get(t, router, "/temperature/history?start_time=2026-07-01T11:35:00")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)

	rec = get(t, router, "/temperature/history?start_time=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid start_time format")

	rec = get(t, router, "/temperature/history?end_time=2026-13-01T00:00:00Z")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid end_time format")

	rec = get(t, router, "/temperature/history?start_time=2026-07-01T12:00:00Z&end_time=2026-07-01T11:00:00Z")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"start_time must be before end_time"}`, rec.Body.String())
}

// TestHourly only lists the last hour.
func TestHourly(t *testing.T) {
	t.Parallel()

	rec := get(t, newRouter(t, map[time.Duration]float64{
		2 * time.Hour:    18,
		30 * time.Minute: 19,
	}), "/temperature/hourly")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []ReadingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.InDelta(t, 19.0, rows[0].Temperature, 1e-9)

	rec = get(t, newRouter(t, nil), "/temperature/hourly")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

// TestBackendFailure maps repository errors to 500.
func TestBackendFailure(t *testing.T) {
	t.Parallel()

	router := NewRouter(failingQuerier{})

	for _, target := range []string{"/temperature/latest", "/temperature/history", "/temperature/hourly"} {
		rec := get(t, router, target)
		require.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}
}

// TestMetricsRoute is only mounted when a handler is supplied.
func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusNotFound, get(t, newRouter(t, nil), "/metrics").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("temperature_monitor_ticks_total 1\n"))
	})

	rec := get(t, newRouter(t, nil, WithMetricsHandler(metrics)), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "temperature_monitor_ticks_total")
}

// TestServe answers over a real listener and stops on cancellation.
func TestServe(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := newRouter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, lis, router)
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/health") //nolint:noctx // Test request.
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	cancel()
	require.NoError(t, <-done)
}
