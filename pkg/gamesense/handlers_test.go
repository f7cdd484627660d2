package gamesense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/consistency"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/gamesense/gamesense/pkg/retry"
	"github.com/gamesense/gamesense/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app    *App
	server *httptest.Server
	docs   *memstore.DocumentStore
	graph  *memstore.GraphStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := memoryConfig()
	cfg.Retry = retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	server := httptest.NewServer(app.Router())
	t.Cleanup(func() {
		server.Close()
		_ = app.Close()
	})
	return &testServer{
		app:    app,
		server: server,
		docs:   app.docs.(*memstore.DocumentStore),
		graph:  app.graph.(*memstore.GraphStore),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) registerUser(t *testing.T, name string) models.UserID {
	t.Helper()
	var resp userResponse
	code := s.do(t, "POST", "/api/users", registerUserRequest{Username: name, Email: name + "@example.com"}, &resp)
	require.Equal(t, http.StatusCreated, code)
	return resp.User.ID
}

func (s *testServer) registerGame(t *testing.T, title string) models.GameID {
	t.Helper()
	var resp gameResponse
	code := s.do(t, "POST", "/api/games", map[string]any{"title": title, "genres": []string{"roguelike"}}, &resp)
	require.Equal(t, http.StatusCreated, code)
	return resp.Game.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/health", nil, &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, DriverMemory, body["graph_driver"])
}

func TestRegisterUserEndpoint(t *testing.T) {
	s := newTestServer(t)

	var resp userResponse
	code := s.do(t, "POST", "/api/users", registerUserRequest{Username: "alice", Email: "alice@example.com"}, &resp)

	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, models.OpCreateUserGraphNode, resp.Outcome.Operation)
	assert.Equal(t, consistency.StateSecondaryWritten, resp.Outcome.State)

	var failure map[string]string
	code = s.do(t, "POST", "/api/users", registerUserRequest{Username: "alice", Email: "other@example.com"}, &failure)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, failure["error"], "username")

	code = s.do(t, "POST", "/api/users", registerUserRequest{Username: "bob", Email: "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterUserPrimaryFailure(t *testing.T) {
	s := newTestServer(t)
	s.docs.Fail("CreateUser", errors.New("connection reset"))

	code := s.do(t, "POST", "/api/users", registerUserRequest{Username: "alice", Email: "alice@example.com"}, nil)

	assert.Equal(t, http.StatusBadGateway, code)
	assert.Zero(t, s.graph.Calls("SaveUserNode"))
}

func TestGraphOutageEndsInDLQAndReplay(t *testing.T) {
	s := newTestServer(t)
	s.graph.Fail("SaveUserNode", errors.New("graph unreachable"))

	var resp userResponse
	code := s.do(t, "POST", "/api/users", registerUserRequest{Username: "alice", Email: "alice@example.com"}, &resp)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, consistency.StateSecondaryExhaustedDLQLogged, resp.Outcome.State)

	var records []models.DeadLetter
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/admin/dlq", nil, &records))
	require.Len(t, records, 1)
	assert.Equal(t, models.OpCreateUserGraphNode, records[0].Operation)
	assert.Equal(t, resp.User.ID.String(), records[0].SubjectID)
	assert.Equal(t, "PENDING", records[0].StatusPayload)

	var report consistencyResponse
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/admin/consistency?entity=users", nil, &report))
	assert.False(t, report.Consistent)
	require.Len(t, report.Reports, 1)
	assert.Equal(t, int64(1), report.Reports[0].PendingDeadLetters)

	s.graph.Clear("SaveUserNode")
	var stats reconcile.ReplayStats
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/dlq/replay", nil, &stats))
	assert.Equal(t, 1, stats.Resolved)

	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/admin/consistency", nil, &report))
	assert.True(t, report.Consistent)
	assert.Len(t, report.Reports, 2)

	records = nil
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/admin/dlq", nil, &records))
	assert.Empty(t, records)
}

func TestGamesEndpoints(t *testing.T) {
	s := newTestServer(t)
	gameID := s.registerGame(t, "Hades")

	var resp gameResponse
	code := s.do(t, "PUT", "/api/games/"+gameID.String(), map[string]any{"title": "Hades II"}, &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OpUpdateGameGraphNode, resp.Outcome.Operation)
	node, err := s.graph.GetGameNode(context.Background(), gameID)
	require.NoError(t, err)
	assert.Equal(t, "Hades II", node.Title)

	assert.Equal(t, http.StatusNotFound, s.do(t, "PUT", "/api/games/"+models.NewGameID().String(), map[string]any{"title": "x"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/games/not-a-uuid", map[string]any{"title": "x"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/games", map[string]any{"title": " "}, nil))
}

func TestAddGameToLibraryEndpoint(t *testing.T) {
	s := newTestServer(t)
	userID := s.registerUser(t, "alice")
	gameID := s.registerGame(t, "Celeste")

	var outcome consistency.Outcome
	code := s.do(t, "POST", "/api/users/"+userID.String()+"/games/"+gameID.String(), nil, &outcome)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, consistency.StateSecondaryWritten, outcome.State)

	owned, err := s.graph.ListOwnerships(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, models.GameStatusPlaying, owned[0].Status)

	code = s.do(t, "POST", "/api/users/"+userID.String()+"/games/"+gameID.String()+"?status=completed", nil, &outcome)
	require.Equal(t, http.StatusCreated, code)
	owned, err = s.graph.ListOwnerships(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, models.GameStatusCompleted, owned[0].Status)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, "POST", "/api/users/"+userID.String()+"/games/"+gameID.String()+"?status=BEATEN", nil, nil))
	assert.Equal(t, http.StatusNotFound,
		s.do(t, "POST", "/api/users/"+models.NewUserID().String()+"/games/"+gameID.String(), nil, nil))
}

func TestFollowEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerUser(t, "alice")
	bob := s.registerUser(t, "bob")

	var team models.TeamNode
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/graph/teams", map[string]any{"name": "Fnatic", "region": "EU"}, &team))
	assert.False(t, team.TeamID.IsZero())

	var outcome consistency.Outcome
	require.Equal(t, http.StatusCreated,
		s.do(t, "POST", "/api/graph/follow/"+alice.String()+"/team/"+team.TeamID.String(), nil, &outcome))
	assert.Equal(t, models.OpFollowTeam, outcome.Operation)
	assert.Len(t, s.graph.TeamFollows(alice), 1)

	require.Equal(t, http.StatusCreated,
		s.do(t, "POST", "/api/graph/follow/"+alice.String()+"/user/"+bob.String(), nil, &outcome))
	assert.Equal(t, []models.UserID{bob}, s.graph.UserFollows(alice))

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, "POST", "/api/graph/follow/"+alice.String()+"/user/"+alice.String(), nil, nil))
	assert.Equal(t, http.StatusNotFound,
		s.do(t, "POST", "/api/graph/follow/"+alice.String()+"/team/"+models.NewTeamID().String(), nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/graph/teams", map[string]any{}, nil))
}

func TestResolveDeadLetterEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.graph.Fail("SaveGameNode", errors.New("graph unreachable"))
	s.registerGame(t, "Tetris")

	var records []models.DeadLetter
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/admin/dlq?limit=10", nil, &records))
	require.Len(t, records, 1)

	var resolved models.DeadLetter
	path := "/api/admin/dlq/" + strconv.FormatUint(records[0].ID, 10) + "/resolve"
	require.Equal(t, http.StatusOK, s.do(t, "POST", path, nil, &resolved))
	assert.True(t, resolved.Resolved)
	assert.NotNil(t, resolved.ResolvedAt)

	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/admin/dlq/999/resolve", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/admin/dlq/abc/resolve", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/admin/dlq?limit=-1", nil, nil))
}

func TestSyncUserEndpoint(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerUser(t, "alice")

	var diff reconcile.UserDiff
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/users/"+alice.String()+"/sync", nil, &diff))
	assert.True(t, diff.UsernameMatch)

	assert.Equal(t, http.StatusNotFound,
		s.do(t, "POST", "/api/admin/users/"+models.NewUserID().String()+"/sync", nil, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "alice")

	resp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gamesense_operations_total{operation="CREATE_USER_GRAPH_NODE",state="SECONDARY_WRITTEN"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(consistency.ErrValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(consistency.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(consistency.ErrConflict))
	assert.Equal(t, http.StatusBadGateway, statusFor(consistency.ErrPrimaryWrite))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
