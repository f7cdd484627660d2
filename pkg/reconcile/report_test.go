package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReportsGolden(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 10, 10)
	for i := 0; i < 3; i++ {
		game := models.Game{ID: models.NewGameID(), Title: "game"}
		require.NoError(t, s.docs.CreateGame(context.Background(), &game))
		if i < 2 {
			require.NoError(t, s.graph.SaveGameNode(context.Background(), models.NewGameNode(&game)))
		}
	}
	s.enqueue(models.OpCreateGameGraphNode, "g3", "GameNode", "PENDING")

	var buf bytes.Buffer
	require.NoError(t, RenderReports(&buf, s.checker().CheckAll(context.Background())))

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "reports", buf.Bytes())
}

func TestRenderReportsError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReports(&buf, []Report{{EntityClass: EntityUsers, Error: "graph store: refused"}}))

	assert.Equal(t,
		"ENTITY  DOCUMENT  GRAPH  DLQ  STATUS\n"+
			"users   -         -      0    error: graph store: refused\n",
		buf.String())
}

func TestRenderSingleReport(t *testing.T) {
	var buf bytes.Buffer
	r := Report{EntityClass: EntityUsers, DocumentCount: 10, GraphCount: 9, Detail: "document users: 10, graph users: 9"}
	require.NoError(t, r.Render(&buf))

	assert.Equal(t, "users: drift +1 (document users: 10, graph users: 9)\n", buf.String())
}

func TestReportJSON(t *testing.T) {
	r := Report{EntityClass: EntityGames, DocumentCount: 2, GraphCount: 2, Consistent: true, GeneratedAt: fixedNow}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "games", fields["entity_class"])
	assert.Equal(t, true, fields["consistent"])
	assert.NotContains(t, fields, "error")
	assert.Equal(t, "2024-03-01T12:00:00Z", fields["generated_at"])
}
