package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/user/{user_id}/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/"+id+"/profile", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/user/{user_id}/profile", "404"))
	assert.Equal(t, 3.0, got)
}

func TestBalanceOpAndMigrationStep(t *testing.T) {
	m := New()
	m.BalanceOp("spins", "decrement", "insufficient")
	m.BalanceOp("spins", "decrement", "insufficient")
	m.MigrationStep("0001", "up", time.Millisecond, nil)
	m.MigrationStep("0002", "up", time.Millisecond, errors.New("boom"))
	m.JobRun("purge_otp", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.balanceOps.WithLabelValues("spins", "decrement", "insufficient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.migrationSteps.WithLabelValues("up", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.migrationSteps.WithLabelValues("up", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("purge_otp", "true")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.BalanceOp("claims", "get", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gacha_balance_operations_total")
}
