package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-engine/internal/snapshot"
)

// gathered returns the counter or gauge value of the series whose label values
// are labels, in label order.
func gathered(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			pairs := m.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, lp := range pairs {
				if lp.GetValue() != labels[i] {
					continue series
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no series %s%v", name, labels)
	return 0
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	started := time.Date(2026, 1, 9, 18, 0, 0, 0, time.UTC)
	c.Observe(snapshot.Report{Job: snapshot.JobFeed, Scanned: 40, Written: 30, Skipped: 5, Started: started, Duration: 2 * time.Second}, nil)
	c.Observe(snapshot.Report{Job: snapshot.JobFeed, Scanned: 10}, errors.New("store down"))
	c.ObserveCache(7, 3)

	assert.Equal(t, 50.0, gathered(t, reg, "snapshot_quotes_scanned_total", "feed"))
	assert.Equal(t, 30.0, gathered(t, reg, "snapshot_rows_written_total", "feed"))
	assert.Equal(t, 1.0, gathered(t, reg, "snapshot_runs_total", "feed", "ok"))
	assert.Equal(t, 1.0, gathered(t, reg, "snapshot_runs_total", "feed", "error"))
	assert.Equal(t, float64(started.Add(2*time.Second).Unix()), gathered(t, reg, "snapshot_last_success_timestamp_seconds", "feed"))
	assert.Equal(t, 7.0, gathered(t, reg, "snapshot_cache_hits_total"))

	last := c.Last()
	require.Len(t, last, 1)
	assert.Equal(t, "store down", last[0].Error)
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	c.Observe(snapshot.Report{Job: snapshot.JobProjections, Written: 4}, nil)
	c.Observe(snapshot.Report{Job: snapshot.JobFeed, Written: 9}, nil)

	healthy := true
	h := NewRouter(reg, c, func(context.Context) error {
		if !healthy {
			return errors.New("ping failed")
		}
		return nil
	})

	tests := []struct {
		name     string
		path     string
		healthy  bool
		wantCode int
		contains string
	}{
		{"metrics", "/metrics", true, http.StatusOK, "snapshot_rows_written_total"},
		{"healthy", "/healthz", true, http.StatusOK, "ok"},
		{"unhealthy", "/healthz", false, http.StatusServiceUnavailable, "ping failed"},
		{"unknown route", "/nope", true, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy = tt.healthy
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), tt.contains), rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/last", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, snapshot.JobFeed, runs[0].Job)
	assert.Equal(t, 9, runs[0].Written)
}
