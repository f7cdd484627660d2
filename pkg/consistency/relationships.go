package consistency

import (
	"context"
	"fmt"

	"github.com/gamesense/gamesense/pkg/activity"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/models"
)

// relationship is one Protocol B operation after its preconditions held.
type relationship struct {
	userID   models.UserID
	subject  string
	action   models.ActivityAction
	status   string
	payload  string
	saveEdge func(ctx context.Context) error
}

// AddGameToLibrary creates or updates the OWNS edge from the user to the game,
// then records an ADD_GAME activity entry under the retry policy.
//
// Both nodes must exist in the graph, otherwise ErrNotFound is returned with
// nothing written. When every activity attempt fails the call still succeeds
// and one ADD_GAME_TO_LIBRARY dead letter holds the status.
func (c *Coordinator) AddGameToLibrary(ctx context.Context, userID models.UserID, gameID models.GameID, status models.GameStatus) (Outcome, error) {
	t := c.start(models.OpAddGameToLibrary)
	defer c.finish(t)

	status, err := models.ParseGameStatus(string(status))
	if err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := c.requireUserNode(ctx, userID); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, err
	}
	game, err := c.graph.GetGameNode(ctx, gameID)
	if err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	if game == nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: game node %s", ErrNotFound, gameID)
	}

	edge := &models.GameOwnership{
		UserID:  userID,
		GameID:  gameID,
		Status:  status,
		AddedAt: c.now().UTC(),
	}
	return c.relate(ctx, t, relationship{
		userID:  userID,
		subject: gameID.String(),
		action:  models.ActivityAddGame,
		status:  string(status),
		payload: string(status),
		saveEdge: func(ctx context.Context) error {
			return c.graph.SaveOwnership(ctx, edge)
		},
	})
}

// FollowTeam creates the FOLLOWS_TEAM edge and records a FOLLOW_TEAM activity entry.
func (c *Coordinator) FollowTeam(ctx context.Context, userID models.UserID, teamID models.TeamID) (Outcome, error) {
	t := c.start(models.OpFollowTeam)
	defer c.finish(t)

	if err := c.requireUserNode(ctx, userID); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, err
	}
	team, err := c.graph.GetTeamNode(ctx, teamID)
	if err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	if team == nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: team node %s", ErrNotFound, teamID)
	}

	edge := &models.TeamFollow{UserID: userID, TeamID: teamID, FollowedAt: c.now().UTC()}
	return c.relate(ctx, t, relationship{
		userID:  userID,
		subject: teamID.String(),
		action:  models.ActivityFollowTeam,
		payload: string(models.ActivityFollowTeam),
		saveEdge: func(ctx context.Context) error {
			return c.graph.SaveTeamFollow(ctx, edge)
		},
	})
}

// FollowUser creates the FOLLOWS_USER edge and records a FOLLOW_USER activity
// entry. A user cannot follow themselves.
func (c *Coordinator) FollowUser(ctx context.Context, userID, targetID models.UserID) (Outcome, error) {
	t := c.start(models.OpFollowUser)
	defer c.finish(t)

	if userID == targetID {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: cannot follow yourself", ErrValidation)
	}
	for _, id := range []models.UserID{userID, targetID} {
		if err := c.requireUserNode(ctx, id); err != nil {
			t.to(StatePrimaryWriteFailed)
			return t.outcome, err
		}
	}

	edge := &models.UserFollow{UserID: userID, TargetUserID: targetID, FollowedAt: c.now().UTC()}
	return c.relate(ctx, t, relationship{
		userID:  userID,
		subject: targetID.String(),
		action:  models.ActivityFollowUser,
		payload: string(models.ActivityFollowUser),
		saveEdge: func(ctx context.Context) error {
			return c.graph.SaveUserFollow(ctx, edge)
		},
	})
}

func (c *Coordinator) requireUserNode(ctx context.Context, id models.UserID) error {
	node, err := c.graph.GetUserNode(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	if node == nil {
		return fmt.Errorf("%w: user node %s", ErrNotFound, id)
	}
	return nil
}

// relate writes the edge, then the activity entry.
func (c *Coordinator) relate(ctx context.Context, t *tracker, r relationship) (Outcome, error) {
	if err := r.saveEdge(ctx); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	t.to(StatePrimaryWritten)
	c.log.Info("relationship saved in graph store",
		"operation", t.outcome.Operation, "user_id", r.userID, "subject_id", r.subject)

	entry := dlq.Entry{
		Operation:     t.outcome.Operation,
		SubjectID:     r.userID.String(),
		ResourceID:    r.subject,
		TargetStore:   models.StoreDocument,
		StatusPayload: r.payload,
	}
	event := activity.Event{
		UserID:    r.userID,
		SubjectID: r.subject,
		Action:    r.action,
		Status:    r.status,
	}
	c.secondary(ctx, t, c.policy, entry, func(ctx context.Context) error {
		_, err := c.activity.Record(ctx, event)
		return err
	})
	return t.outcome, nil
}
