// Package consistency coordinates writes that span the document store and the
// graph store.
//
// Every coordinated operation follows the same ordered dual-write: a primary
// write that decides the outcome, then a secondary write whose failure is
// absorbed. There is no distributed transaction and no rollback. Two protocols
// are in use:
//
//   - Protocol A (RegisterUser, RegisterGame, UpdateGame): the document store is
//     primary. The graph node is mirrored with one bounded attempt.
//   - Protocol B (AddGameToLibrary, FollowTeam, FollowUser): the graph store is
//     primary. The activity log entry is recorded under the retry policy.
//
// A secondary write that still fails ends in the dead letter queue and the
// caller sees success with state [StateSecondaryExhaustedDLQLogged].
//
// # Errors
//
// Callers only ever see [ErrValidation], [ErrNotFound], [ErrConflict] and
// [ErrPrimaryWrite]. Secondary failures are logged and sent to the DLQ.
//
// # Cancellation
//
// Once the primary write succeeded the rest of the operation runs on a context
// detached from the caller's cancellation, so a disconnecting client cannot
// leave the secondary write undone without a dead letter.
package consistency

import (
	"context"
	"errors"
	"time"

	"github.com/gamesense/gamesense/pkg/activity"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/retry"
	"github.com/gamesense/gamesense/pkg/store"
)

// State is a step of a coordinated operation.
type State string

const (
	StateStarted                     State = "STARTED"
	StatePrimaryWriteFailed          State = "PRIMARY_WRITE_FAILED"
	StatePrimaryWritten              State = "PRIMARY_WRITTEN"
	StateSecondaryWritten            State = "SECONDARY_WRITTEN"
	StateSecondaryFailedRetrying     State = "SECONDARY_FAILED_RETRYING"
	StateSecondaryExhaustedDLQLogged State = "SECONDARY_EXHAUSTED_DLQ_LOGGED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StatePrimaryWriteFailed, StateSecondaryWritten, StateSecondaryExhaustedDLQLogged:
		return true
	}
	return false
}

var (
	// ErrValidation is returned for malformed input. Nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an entity the operation needs does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrConflict is returned when a unique attribute is already taken.
	ErrConflict = errors.New("conflict")
	// ErrPrimaryWrite wraps a store failure on the primary leg.
	ErrPrimaryWrite = errors.New("primary write failed")
)

// Outcome reports how a coordinated operation ended.
type Outcome struct {
	Operation models.Operation `json:"operation"`
	State     State            `json:"state"`
	// Attempts is the number of secondary write attempts.
	Attempts int `json:"attempts"`
}

// Degraded reports whether the secondary write ended in the DLQ.
func (o Outcome) Degraded() bool {
	return o.State == StateSecondaryExhaustedDLQLogged
}

// DefaultGraphSyncTimeout bounds the single graph mirror attempt of Protocol A.
const DefaultGraphSyncTimeout = 5 * time.Second

// Coordinator runs the dual-write protocols. It holds no locks and no
// per-operation state; concurrent calls are safe.
type Coordinator struct {
	docs     store.DocumentStore
	graph    store.GraphStore
	activity *activity.Recorder
	dlq      *dlq.Queue
	retrier  *retry.Retrier

	policy           retry.Policy
	graphSyncTimeout time.Duration
	log              logger.Logger
	observer         Observer
	now              func() time.Time
}

// Observer is told the outcome of every finished operation.
type Observer interface {
	ObserveOutcome(Outcome)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPolicy sets the retry policy of the Protocol B activity write.
func WithPolicy(p retry.Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithGraphSyncTimeout bounds the graph mirror attempt. Non-positive values are ignored.
func WithGraphSyncTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.graphSyncTimeout = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// New creates a Coordinator. A nil retrier gets a default one.
func New(
	docs store.DocumentStore,
	graph store.GraphStore,
	recorder *activity.Recorder,
	queue *dlq.Queue,
	retrier *retry.Retrier,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		docs:             docs,
		graph:            graph,
		activity:         recorder,
		dlq:              queue,
		retrier:          retrier,
		policy:           retry.DefaultPolicy(),
		graphSyncTimeout: DefaultGraphSyncTimeout,
		log:              logger.Nop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retry.New(retry.WithLogger(c.log))
	}
	return c
}

// tracker follows one operation through its states.
type tracker struct {
	log     logger.Logger
	outcome Outcome
}

func (c *Coordinator) start(op models.Operation) *tracker {
	t := &tracker{log: c.log, outcome: Outcome{Operation: op, State: StateStarted}}
	c.log.Debug("operation started", "operation", op)
	return t
}

// finish is deferred by every operation.
func (c *Coordinator) finish(t *tracker) {
	if c.observer != nil {
		c.observer.ObserveOutcome(t.outcome)
	}
}

func (t *tracker) to(s State) {
	t.log.Debug("state transition", "operation", t.outcome.Operation, "from", t.outcome.State, "to", s)
	t.outcome.State = s
}

// detach is used for every step after the primary write.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
