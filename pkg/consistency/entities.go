package consistency

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/retry"
	"github.com/gamesense/gamesense/pkg/store"
)

// Payload and resource labels of graph sync dead letters.
const (
	PendingPayload   = "PENDING"
	UserNodeResource = "UserNode"
	GameNodeResource = "GameNode"
)

func validateUser(u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, u.Email)
	}
	return nil
}

func validateGame(g *models.Game) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// RegisterUser writes the user document, then mirrors it as a graph node.
//
// Validation, uniqueness and document write failures are returned and nothing
// else is written. A failed mirror is logged, sent to the DLQ as
// CREATE_USER_GRAPH_NODE and the call still succeeds. On success user carries
// the assigned id.
func (c *Coordinator) RegisterUser(ctx context.Context, user *models.User) (Outcome, error) {
	t := c.start(models.OpCreateUserGraphNode)
	defer c.finish(t)
	if err := c.createUser(ctx, user); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, err
	}
	t.to(StatePrimaryWritten)
	c.log.Info("user created in document store", "user_id", user.ID, "username", user.Username)

	node := models.NewUserNode(user)
	c.syncGraph(ctx, t, user.ID.String(), UserNodeResource, func(ctx context.Context) error {
		return c.graph.SaveUserNode(ctx, node)
	})
	return t.outcome, nil
}

func (c *Coordinator) createUser(ctx context.Context, user *models.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	for _, check := range []struct {
		field store.UserField
		value string
	}{
		{store.UserFieldUsername, user.Username},
		{store.UserFieldEmail, user.Email},
	} {
		exists, err := c.docs.UserExists(ctx, check.field, check.value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
		}
		if exists {
			return fmt.Errorf("%w: %s %q already taken", ErrConflict, check.field, check.value)
		}
	}
	if err := c.docs.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	return nil
}

// RegisterGame writes the game document, then mirrors it as a graph node.
// A failed mirror ends in the DLQ as CREATE_GAME_GRAPH_NODE.
func (c *Coordinator) RegisterGame(ctx context.Context, game *models.Game) (Outcome, error) {
	t := c.start(models.OpCreateGameGraphNode)
	defer c.finish(t)
	if err := validateGame(game); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, err
	}
	if err := c.docs.CreateGame(ctx, game); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	t.to(StatePrimaryWritten)
	c.log.Info("game created in document store", "game_id", game.ID, "title", game.Title)

	node := models.NewGameNode(game)
	c.syncGraph(ctx, t, game.ID.String(), GameNodeResource, func(ctx context.Context) error {
		return c.graph.SaveGameNode(ctx, node)
	})
	return t.outcome, nil
}

// UpdateGame rewrites the game document and refreshes its graph node. The node
// is only touched when it already exists; a game that was never mirrored is
// left to the DLQ record of its registration. A failed refresh ends in the DLQ
// as UPDATE_GAME_GRAPH_NODE.
func (c *Coordinator) UpdateGame(ctx context.Context, game *models.Game) (Outcome, error) {
	t := c.start(models.OpUpdateGameGraphNode)
	defer c.finish(t)
	if err := validateGame(game); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, err
	}
	existing, err := c.docs.GetGame(ctx, game.ID)
	if err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	if existing == nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: game %s", ErrNotFound, game.ID)
	}
	game.CreatedAt = existing.CreatedAt
	if err := c.docs.UpdateGame(ctx, game); err != nil {
		t.to(StatePrimaryWriteFailed)
		return t.outcome, fmt.Errorf("%w: %w", ErrPrimaryWrite, err)
	}
	t.to(StatePrimaryWritten)
	c.log.Info("game updated in document store", "game_id", game.ID)

	c.syncGraph(ctx, t, game.ID.String(), GameNodeResource, func(ctx context.Context) error {
		node, err := c.graph.GetGameNode(ctx, game.ID)
		if err != nil {
			return err
		}
		if node == nil {
			c.log.Debug("game node absent, skipping refresh", "game_id", game.ID)
			return nil
		}
		return c.graph.SaveGameNode(ctx, models.NewGameNode(game))
	})
	return t.outcome, nil
}

// syncGraph makes the single bounded mirror attempt of Protocol A.
func (c *Coordinator) syncGraph(ctx context.Context, t *tracker, subjectID, resource string, write func(ctx context.Context) error) {
	entry := dlq.Entry{
		Operation:     t.outcome.Operation,
		SubjectID:     subjectID,
		ResourceID:    resource,
		TargetStore:   models.StoreGraph,
		StatusPayload: PendingPayload,
	}
	c.secondary(ctx, t, retry.SingleAttempt(), entry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.graphSyncTimeout)
		defer cancel()
		return write(ctx)
	})
}

// secondary runs the secondary leg on a detached context under policy and
// sends entry to the DLQ once it gives up.
func (c *Coordinator) secondary(ctx context.Context, t *tracker, policy retry.Policy, entry dlq.Entry, write func(ctx context.Context) error) {
	ctx = detach(ctx)
	enqueue := func(ctx context.Context, ex retry.Exhaustion) {
		entry.Err = ex.LastErr
		c.dlq.Enqueue(ctx, entry)
	}

	out, err := retry.Do(ctx, c.retrier, string(entry.Operation), policy,
		func(ctx context.Context, a retry.Attempt) error {
			if a.Number > 1 && t.outcome.State != StateSecondaryFailedRetrying {
				t.to(StateSecondaryFailedRetrying)
			}
			return write(ctx)
		}, enqueue)
	t.outcome.Attempts = out.Attempts

	switch {
	case err != nil:
		// the policy was rejected before any attempt
		c.log.Error("secondary write not attempted", "operation", entry.Operation, "error", err)
		enqueue(ctx, retry.Exhaustion{Operation: string(entry.Operation), LastErr: err})
		t.to(StateSecondaryExhaustedDLQLogged)
	case out.Degraded:
		t.to(StateSecondaryExhaustedDLQLogged)
	default:
		t.to(StateSecondaryWritten)
	}
}
