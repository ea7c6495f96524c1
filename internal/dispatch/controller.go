// Package dispatch turns dashboard intents into store mutations and
// persistence calls. Each intent mutates the store optimistically under the
// controller lock, calls the service without holding it, then reconciles.
// A failed call rolls back the entities it touched unless a newer command
// has touched them since, and responses older than the last command on an
// entity are dropped.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/notify"
	"github.com/qninhdt/c3/server/internal/selection"
	"github.com/qninhdt/c3/server/internal/store"
)

// tempPrefix marks ids the service has not issued yet
const tempPrefix = "temp-"

// Persistence is the service the controller reconciles against. Every
// call is scoped to the signed-in user.
type Persistence interface {
	Session(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error)

	ListAgents(ctx context.Context) ([]models.Agent, error)
	CreateAgent(ctx context.Context, req models.CreateAgentRequest) (*models.Agent, error)

	ListMissions(ctx context.Context) ([]models.Mission, error)
	CreateMission(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error)
	UpdateMission(ctx context.Context, id string, patch models.MissionPatch) (*models.Mission, error)
	DeleteMission(ctx context.Context, id string) error
	AssignAgents(ctx context.Context, missionID string, agentIDs []string) (*models.Mission, error)

	ListZones(ctx context.Context) ([]models.Zone, error)
	CreateZone(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error)

	UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error)
}

// Controller owns the client state and dispatches intents against it
type Controller struct {
	mu sync.Mutex

	p      Persistence
	store  *store.Store
	sel    *selection.Selection
	notes  *notify.Queue
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	seq    uint64
	latest map[string]uint64 // entity key -> sequence of the last command on it
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithClock replaces time.Now for optimistic timestamps
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithIDs replaces the generator for provisional ids
func WithIDs(gen func() string) Option { return func(c *Controller) { c.newID = gen } }

// WithQueue replaces the notification queue
func WithQueue(q *notify.Queue) Option { return func(c *Controller) { c.notes = q } }

// New creates a controller with an empty store
func New(p Persistence, opts ...Option) *Controller {
	sel := selection.New()
	c := &Controller{
		p:      p,
		sel:    sel,
		store:  store.New(sel),
		notes:  notify.NewQueue(),
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
		latest: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the entity store
func (c *Controller) Store() *store.Store { return c.store }

// Selection returns the live selection
func (c *Controller) Selection() *selection.Selection { return c.sel }

// Notifications returns the notification queue
func (c *Controller) Notifications() *notify.Queue { return c.notes }

// Bootstrap loads the session profile, agents, missions and zones
func (c *Controller) Bootstrap(ctx context.Context) error {
	var (
		profile  *models.UserProfile
		agents   []models.Agent
		missions []models.Mission
		zones    []models.Zone
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = c.p.Session(gctx)
		if err == nil && profile == nil {
			err = fmt.Errorf("no session: %w", models.ErrUnauthorized)
		}
		return err
	})
	g.Go(func() (err error) {
		agents, err = c.p.ListAgents(gctx)
		return err
	})
	g.Go(func() (err error) {
		missions, err = c.p.ListMissions(gctx)
		return err
	})
	g.Go(func() (err error) {
		zones, err = c.p.ListZones(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.fail("Failed to load dashboard", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetUser(profile)
	c.store.SetAgents(agents)
	c.store.SetMissions(missions)
	c.store.SetZones(zones)
	return nil
}

// op is one optimistic command in flight
type op struct {
	seq  uint64
	snap store.Snapshot
}

// prepare captures the entities a command is about to touch. Callers hold c.mu.
func (c *Controller) prepare(agentIDs, missionIDs []string) *op {
	return &op{snap: c.store.Snapshot(agentIDs, missionIDs)}
}

// claim gives the command a sequence and marks it as the latest on every
// entity it captured
func (c *Controller) claim(o *op) {
	c.seq++
	o.seq = c.seq
	for _, key := range o.snap.Keys() {
		c.latest[key] = o.seq
	}
}

// touch marks key as changed by something other than a command in flight
func (c *Controller) touch(key string) {
	c.seq++
	c.latest[key] = c.seq
}

func (c *Controller) owns(o *op, key string) bool {
	return c.latest[key] == o.seq
}

func (c *Controller) rollback(o *op) {
	c.store.Restore(o.snap, func(key string) bool { return !c.owns(o, key) })
	c.release(o)
}

// release forgets the sequences still held by o
func (c *Controller) release(o *op) {
	for _, key := range o.snap.Keys() {
		if c.owns(o, key) {
			delete(c.latest, key)
		}
	}
}

func (c *Controller) fail(title string, err error) {
	c.logger.Warn(title, zap.Error(err))
	c.notes.Error(title, describe(err))
}

// describe turns an error into text for the commander
func describe(err error) string {
	var input *models.InputError
	switch {
	case errors.As(err, &input):
		return input.Error()
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		return "Please sign in again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled."
	}
	return "Something went wrong. Please try again."
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
