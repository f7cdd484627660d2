// Package reconcile detects and repairs drift between the document store and
// the graph store.
//
// [Checker] compares entity counts across the stores and inspects single users.
// [Replayer] works through the dead letter queue and redoes the secondary
// writes that were given up on. [Monitor] runs both on an interval.
//
// Count comparison is a smoke signal only: two stores can hold the same number
// of entities and still disagree about which ones. [Checker.SynchronizeUser] is
// the narrow per-entity check.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"golang.org/x/sync/errgroup"
)

// EntityClass names the kind of entity a report covers.
type EntityClass string

const (
	EntityUsers EntityClass = "users"
	EntityGames EntityClass = "games"
)

// EntityClasses lists every class CheckAll covers, in report order.
var EntityClasses = []EntityClass{EntityUsers, EntityGames}

// ErrUnknownEntity is returned for an EntityClass outside EntityClasses.
var ErrUnknownEntity = errors.New("unknown entity class")

// ParseEntityClass accepts "users" or "games".
func ParseEntityClass(s string) (EntityClass, error) {
	for _, class := range EntityClasses {
		if string(class) == s {
			return class, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownEntity, s)
}

// Checker compares the two stores. It only reads.
type Checker struct {
	docs  store.DocumentStore
	graph store.GraphStore
	queue *dlq.Queue
	log   logger.Logger
	now   func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

func WithLogger(l logger.Logger) Option {
	return func(c *Checker) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a Checker. queue may be nil, in which case reports carry
// no pending dead letter count.
func NewChecker(docs store.DocumentStore, graph store.GraphStore, queue *dlq.Queue, opts ...Option) *Checker {
	c := &Checker{docs: docs, graph: graph, queue: queue, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckConsistency compares the number of user documents with the number of user nodes.
func (c *Checker) CheckConsistency(ctx context.Context) Report {
	return c.Check(ctx, EntityUsers)
}

// Check compares document and graph counts for one entity class. Both counts
// are fetched concurrently. Check never fails: an adapter error produces an
// inconsistent report with Error set.
func (c *Checker) Check(ctx context.Context, class EntityClass) Report {
	r := Report{EntityClass: class, GeneratedAt: c.now().UTC()}

	countDocs, countNodes, err := c.counters(class)
	if err != nil {
		r.Error = err.Error()
		r.Detail = "consistency check not run"
		return r
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := countDocs(gctx)
		if err != nil {
			return fmt.Errorf("document store: %w", err)
		}
		r.DocumentCount = n
		return nil
	})
	g.Go(func() error {
		n, err := countNodes(gctx)
		if err != nil {
			return fmt.Errorf("graph store: %w", err)
		}
		r.GraphCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		c.log.Error("consistency check failed", "entity", class, "error", err)
		r.Error = err.Error()
		r.Detail = fmt.Sprintf("consistency check failed: %v", err)
		return r
	}

	r.Consistent = r.DocumentCount == r.GraphCount
	r.Detail = fmt.Sprintf("document %s: %d, graph %s: %d", class, r.DocumentCount, class, r.GraphCount)
	c.pendingDeadLetters(ctx, &r)
	if !r.Consistent {
		c.log.Warn("stores out of sync",
			"entity", class, "document_count", r.DocumentCount, "graph_count", r.GraphCount)
	}
	return r
}

func (c *Checker) counters(class EntityClass) (docs, nodes func(context.Context) (int64, error), err error) {
	switch class {
	case EntityUsers:
		return c.docs.CountUsers, c.graph.CountUserNodes, nil
	case EntityGames:
		return c.docs.CountGames, c.graph.CountGameNodes, nil
	}
	return nil, nil, fmt.Errorf("%w %q", ErrUnknownEntity, class)
}

// pendingDeadLetters is best effort; a failed read only shows up in the detail.
func (c *Checker) pendingDeadLetters(ctx context.Context, r *Report) {
	if c.queue == nil {
		return
	}
	n, err := c.queue.CountUnresolved(ctx)
	if err != nil {
		r.Detail += fmt.Sprintf(" (pending dead letters unknown: %v)", err)
		return
	}
	r.PendingDeadLetters = n
}

// CheckAll checks every entity class.
func (c *Checker) CheckAll(ctx context.Context) []Report {
	reports := make([]Report, len(EntityClasses))
	var g errgroup.Group
	for i, class := range EntityClasses {
		g.Go(func() error {
			reports[i] = c.Check(ctx, class)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// UserDiff is the field by field comparison of one user across the stores.
type UserDiff struct {
	UserID           models.UserID `json:"user_id"`
	DocumentUsername string        `json:"document_username"`
	GraphUsername    string        `json:"graph_username"`
	UsernameMatch    bool          `json:"username_match"`
	// Repaired is set when the node was rewritten from the document.
	Repaired bool `json:"repaired"`
}

// Consistent reports whether every compared field matched.
func (d *UserDiff) Consistent() bool {
	return d.UsernameMatch
}

// SynchronizeUser loads the user document and the user node, compares them and
// rewrites the node from the document on mismatch. The document is canonical.
// Unlike Check it fails loudly: a missing representation or a store error is
// returned.
func (c *Checker) SynchronizeUser(ctx context.Context, id models.UserID) (*UserDiff, error) {
	user, err := c.docs.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s from document store: %w", id, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w in document store", id, store.ErrNotFound)
	}
	node, err := c.graph.GetUserNode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s from graph store: %w", id, err)
	}
	if node == nil {
		return nil, fmt.Errorf("user %s: %w in graph store", id, store.ErrNotFound)
	}

	diff := &UserDiff{
		UserID:           id,
		DocumentUsername: user.Username,
		GraphUsername:    node.Username,
		UsernameMatch:    user.Username == node.Username,
	}
	if diff.Consistent() {
		c.log.Info("user in sync", "user_id", id)
		return diff, nil
	}

	c.log.Warn("username mismatch",
		"user_id", id, "document_username", user.Username, "graph_username", node.Username)
	if err := c.graph.SaveUserNode(ctx, models.NewUserNode(user)); err != nil {
		return diff, fmt.Errorf("failed to repair user node %s: %w", id, err)
	}
	diff.Repaired = true
	c.log.Info("user node repaired from document", "user_id", id)
	return diff, nil
}
