package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gamesense/gamesense/pkg/consistency"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	m := New()

	m.ObserveOutcome(consistency.Outcome{
		Operation: models.OpAddGameToLibrary,
		State:     consistency.StateSecondaryWritten,
		Attempts:  1,
	})
	m.ObserveOutcome(consistency.Outcome{
		Operation: models.OpAddGameToLibrary,
		State:     consistency.StateSecondaryExhaustedDLQLogged,
		Attempts:  3,
	})
	m.ObserveOutcome(consistency.Outcome{
		Operation: models.OpCreateUserGraphNode,
		State:     consistency.StatePrimaryWriteFailed,
	})

	op := string(models.OpAddGameToLibrary)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(op, string(consistency.StateSecondaryWritten))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deadLetters.WithLabelValues(op)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(
		string(models.OpCreateUserGraphNode), string(consistency.StatePrimaryWriteFailed))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attempts))
}

func TestObserveReports(t *testing.T) {
	m := New()

	m.ObserveReports([]reconcile.Report{
		{EntityClass: reconcile.EntityUsers, DocumentCount: 10, GraphCount: 9, PendingDeadLetters: 1},
		{EntityClass: reconcile.EntityGames, DocumentCount: 3, GraphCount: 3, Consistent: true, PendingDeadLetters: 1},
	})

	assert.Equal(t, 10.0, testutil.ToFloat64(m.entities.WithLabelValues("users", "document")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.entities.WithLabelValues("users", "graph")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.consistent.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.consistent.WithLabelValues("games")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))

	m.ObserveReports([]reconcile.Report{{EntityClass: reconcile.EntityUsers, Error: "graph store: down"}})
	assert.Equal(t, 9.0, testutil.ToFloat64(m.entities.WithLabelValues("users", "graph")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOutcome(consistency.Outcome{Operation: models.OpFollowTeam, State: consistency.StateSecondaryWritten, Attempts: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gamesense_operations_total{operation="FOLLOW_TEAM",state="SECONDARY_WRITTEN"} 1`)
}
