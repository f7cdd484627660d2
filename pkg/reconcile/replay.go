package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamesense/gamesense/pkg/activity"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

// DefaultReplayBatch is the number of dead letters one Replay call works through.
const DefaultReplayBatch = 100

// errUnknownOperation marks a dead letter the replayer has no handler for.
var errUnknownOperation = errors.New("unknown dead letter operation")

// ReplayStats counts what one Replay call did.
type ReplayStats struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Replayer redoes the secondary writes recorded in the dead letter queue.
//
// Graph sync records are replayed from the current document, not from the
// record, so a replay always mirrors the latest state. Activity records are
// appended again; the feed is at-least-once.
type Replayer struct {
	docs     store.DocumentStore
	graph    store.GraphStore
	activity *activity.Recorder
	queue    *dlq.Queue
	log      logger.Logger
}

func NewReplayer(
	docs store.DocumentStore,
	graph store.GraphStore,
	recorder *activity.Recorder,
	queue *dlq.Queue,
	log logger.Logger,
) *Replayer {
	if log == nil {
		log = logger.Nop()
	}
	return &Replayer{docs: docs, graph: graph, activity: recorder, queue: queue, log: log}
}

// Replay works through at most limit unresolved dead letters, oldest first.
// A limit of 0 or less uses DefaultReplayBatch. Each handled record is marked
// resolved; a failed one gets its retry count bumped and stays pending.
// Only listing the queue can fail the call.
func (r *Replayer) Replay(ctx context.Context, limit int) (ReplayStats, error) {
	if limit <= 0 {
		limit = DefaultReplayBatch
	}
	records, err := r.queue.ListUnresolvedN(ctx, limit)
	if err != nil {
		return ReplayStats{}, err
	}

	var stats ReplayStats
	for _, record := range records {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Scanned++

		err := r.replay(ctx, record)
		switch {
		case errors.Is(err, errUnknownOperation):
			r.log.Warn("skipping dead letter", "id", record.ID, "operation", record.Operation)
			stats.Skipped++
		case err != nil:
			r.log.Warn("dead letter replay failed", "id", record.ID, "operation", record.Operation, "error", err)
			if err := r.queue.RecordRetry(ctx, record.ID, err); err != nil {
				r.log.Error("failed to record dead letter retry", "id", record.ID, "error", err)
			}
			stats.Failed++
		default:
			if err := r.queue.MarkResolved(ctx, record.ID); err != nil {
				r.log.Error("failed to resolve replayed dead letter", "id", record.ID, "error", err)
				stats.Failed++
				continue
			}
			stats.Resolved++
		}
	}

	if stats.Scanned > 0 {
		r.log.Info("dead letter replay finished",
			"scanned", stats.Scanned, "resolved", stats.Resolved, "failed", stats.Failed, "skipped", stats.Skipped)
	}
	return stats, nil
}

func (r *Replayer) replay(ctx context.Context, record *models.DeadLetter) error {
	switch record.Operation {
	case models.OpCreateUserGraphNode:
		return r.replayUserNode(ctx, record)
	case models.OpCreateGameGraphNode, models.OpUpdateGameGraphNode:
		return r.replayGameNode(ctx, record)
	case models.OpAddGameToLibrary:
		return r.replayActivity(ctx, record, models.ActivityAddGame, record.StatusPayload)
	case models.OpFollowTeam:
		return r.replayActivity(ctx, record, models.ActivityFollowTeam, "")
	case models.OpFollowUser:
		return r.replayActivity(ctx, record, models.ActivityFollowUser, "")
	}
	return fmt.Errorf("%w: %s", errUnknownOperation, record.Operation)
}

func (r *Replayer) replayUserNode(ctx context.Context, record *models.DeadLetter) error {
	id, err := models.ParseUserID(record.SubjectID)
	if err != nil {
		return err
	}
	user, err := r.docs.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s: %w in document store", id, store.ErrNotFound)
	}
	return r.graph.SaveUserNode(ctx, models.NewUserNode(user))
}

func (r *Replayer) replayGameNode(ctx context.Context, record *models.DeadLetter) error {
	id, err := models.ParseGameID(record.SubjectID)
	if err != nil {
		return err
	}
	game, err := r.docs.GetGame(ctx, id)
	if err != nil {
		return err
	}
	if game == nil {
		return fmt.Errorf("game %s: %w in document store", id, store.ErrNotFound)
	}
	return r.graph.SaveGameNode(ctx, models.NewGameNode(game))
}

func (r *Replayer) replayActivity(ctx context.Context, record *models.DeadLetter, action models.ActivityAction, status string) error {
	userID, err := models.ParseUserID(record.SubjectID)
	if err != nil {
		return err
	}
	_, err = r.activity.Record(ctx, activity.Event{
		UserID:    userID,
		SubjectID: record.ResourceID,
		Action:    action,
		Status:    status,
	})
	return err
}
