package gamesense

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gamesense/gamesense/pkg/consistency"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/gorilla/mux"
)

// Router builds the admin HTTP surface.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.Handle("/metrics", a.metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users", a.handleRegisterUser).Methods("POST")
	api.HandleFunc("/games", a.handleRegisterGame).Methods("POST")
	api.HandleFunc("/games/{id}", a.handleUpdateGame).Methods("PUT")
	api.HandleFunc("/users/{userId}/games/{gameId}", a.handleAddGameToLibrary).Methods("POST")

	api.HandleFunc("/graph/teams", a.handleCreateTeam).Methods("POST")
	api.HandleFunc("/graph/follow/{userId}/team/{teamId}", a.handleFollowTeam).Methods("POST")
	api.HandleFunc("/graph/follow/{userId}/user/{targetUserId}", a.handleFollowUser).Methods("POST")

	api.HandleFunc("/admin/consistency", a.handleConsistency).Methods("GET")
	api.HandleFunc("/admin/dlq", a.handleListDeadLetters).Methods("GET")
	api.HandleFunc("/admin/dlq/replay", a.handleReplay).Methods("POST")
	api.HandleFunc("/admin/dlq/{id}/resolve", a.handleResolveDeadLetter).Methods("POST")
	api.HandleFunc("/admin/users/{id}/sync", a.handleSyncUser).Methods("POST")

	return router
}

type registerUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

type userResponse struct {
	User    *models.User        `json:"user"`
	Outcome consistency.Outcome `json:"outcome"`
}

type gameResponse struct {
	Game    *models.Game        `json:"game"`
	Outcome consistency.Outcome `json:"outcome"`
}

func (a *App) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user := &models.User{Username: req.Username, Email: req.Email, Bio: req.Bio, AvatarURL: req.AvatarURL}
	outcome, err := a.coordinator.RegisterUser(r.Context(), user)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, userResponse{User: user, Outcome: outcome})
}

func (a *App) handleRegisterGame(w http.ResponseWriter, r *http.Request) {
	var game models.Game
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	game.ID = models.GameID{}

	outcome, err := a.coordinator.RegisterGame(r.Context(), &game)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, gameResponse{Game: &game, Outcome: outcome})
}

func (a *App) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseGameID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game ID")
		return
	}
	var game models.Game
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	game.ID = id

	outcome, err := a.coordinator.UpdateGame(r.Context(), &game)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gameResponse{Game: &game, Outcome: outcome})
}

func (a *App) handleAddGameToLibrary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := models.ParseUserID(vars["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	gameID, err := models.ParseGameID(vars["gameId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game ID")
		return
	}
	status := models.GameStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.GameStatusPlaying
	}

	outcome, err := a.coordinator.AddGameToLibrary(r.Context(), userID, gameID, status)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, outcome)
}

// handleCreateTeam seeds graph-only team reference data.
func (a *App) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var team models.TeamNode
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if team.Name == "" {
		respondError(w, http.StatusBadRequest, "Team name is required")
		return
	}
	if team.TeamID.IsZero() {
		team.TeamID = models.NewTeamID()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	if err := a.graph.SaveTeamNode(r.Context(), &team); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, team)
}

func (a *App) handleFollowTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := models.ParseUserID(vars["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	teamID, err := models.ParseTeamID(vars["teamId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid team ID")
		return
	}

	outcome, err := a.coordinator.FollowTeam(r.Context(), userID, teamID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, outcome)
}

func (a *App) handleFollowUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := models.ParseUserID(vars["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	targetID, err := models.ParseUserID(vars["targetUserId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid target user ID")
		return
	}

	outcome, err := a.coordinator.FollowUser(r.Context(), userID, targetID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, outcome)
}

type consistencyResponse struct {
	Consistent bool               `json:"consistent"`
	Reports    []reconcile.Report `json:"reports"`
}

// handleConsistency checks every entity class, or only ?entity= when given.
func (a *App) handleConsistency(w http.ResponseWriter, r *http.Request) {
	var reports []reconcile.Report
	if name := r.URL.Query().Get("entity"); name != "" {
		class, err := reconcile.ParseEntityClass(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		reports = []reconcile.Report{a.checker.Check(r.Context(), class)}
	} else {
		reports = a.checker.CheckAll(r.Context())
	}
	a.metrics.ObserveReports(reports)

	resp := consistencyResponse{Consistent: true, Reports: reports}
	for _, report := range reports {
		resp.Consistent = resp.Consistent && report.Consistent
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *App) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	records, err := a.queue.ListUnresolvedN(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.DeadLetter{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (a *App) handleResolveDeadLetter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid dead letter ID")
		return
	}
	if err := a.queue.MarkResolved(r.Context(), id); err != nil {
		respondFailure(w, err)
		return
	}
	record, err := a.queue.Get(r.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (a *App) handleReplay(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	stats, err := a.replayer.Replay(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *App) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseUserID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	diff, err := a.checker.SynchronizeUser(r.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, diff)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":          "healthy",
		"document_driver": a.config.Document.Driver,
		"graph_driver":    a.config.Graph.Driver,
		"dlq_backend":     a.config.DLQ.Backend,
		"time":            time.Now().Unix(),
	}
	respondJSON(w, http.StatusOK, response)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return limit, true
}

// statusFor maps the coordinator's sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, consistency.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, consistency.ErrNotFound), errors.Is(err, dlq.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, consistency.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, consistency.ErrPrimaryWrite):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondFailure(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
