package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qninhdt/c3/server/internal/lifecycle"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/templates"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// fakePersistence is an in-memory service. Mutating calls can be held on a
// gate or scripted to fail once.
type fakePersistence struct {
	mu       sync.Mutex
	profile  *models.UserProfile
	agents   []models.Agent
	missions []models.Mission
	zones    []models.Zone

	failNext map[string]error
	gates    map[string]chan struct{}
	entered  chan string
	calls    []string
	ids      int
	clock    time.Time
}

func newFake() *fakePersistence {
	return &fakePersistence{
		profile:  &models.UserProfile{ID: "u1", Email: "c@example.com", Tier: models.TierFree, Level: 1},
		failNext: map[string]error{},
		gates:    map[string]chan struct{}{},
		entered:  make(chan string, 16),
		clock:    t0,
	}
}

// fail makes the next call to method return err
func (f *fakePersistence) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[method] = err
}

// hold makes the next call to method wait until the returned channel closes
func (f *fakePersistence) hold(method string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[method] = gate
	return gate
}

func (f *fakePersistence) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// enter records the call, waits on its gate and returns the scripted error
func (f *fakePersistence) enter(method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	gate := f.gates[method]
	delete(f.gates, method)
	err := f.failNext[method]
	delete(f.failNext, method)
	f.mu.Unlock()

	select {
	case f.entered <- method:
	default:
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakePersistence) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakePersistence) mission(id string) (int, error) {
	for i := range f.missions {
		if f.missions[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("mission: %w", models.ErrNotFound)
}

func (f *fakePersistence) Session(ctx context.Context) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return nil, nil
	}
	p := *f.profile
	return &p, nil
}

func (f *fakePersistence) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	if err := f.enter("UpdateProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.BaseName != nil {
		f.profile.BaseName = *patch.BaseName
	}
	if patch.OnboardingCompleted != nil {
		f.profile.OnboardingCompleted = *patch.OnboardingCompleted
	}
	if patch.OnboardingStep != nil {
		f.profile.OnboardingStep = *patch.OnboardingStep
	}
	p := *f.profile
	return &p, nil
}

func (f *fakePersistence) ListAgents(ctx context.Context) ([]models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Agent(nil), f.agents...), nil
}

func (f *fakePersistence) CreateAgent(ctx context.Context, req models.CreateAgentRequest) (*models.Agent, error) {
	if err := f.enter("CreateAgent"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := templates.ByID(req.TemplateID)
	if !ok {
		return nil, models.Invalid("template_id", "invalid template")
	}
	f.ids++
	a := t.Instantiate(f.profile.ID, req.Name, req.Position, f.tick())
	a.ID = fmt.Sprintf("agent-%d", f.ids)
	f.agents = append(f.agents, a)
	return &a, nil
}

func (f *fakePersistence) ListMissions(ctx context.Context) ([]models.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Mission(nil), f.missions...), nil
}

func (f *fakePersistence) CreateMission(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error) {
	if err := f.enter("CreateMission"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids++
	now := f.tick()
	m := models.Mission{
		ID:             fmt.Sprintf("mission-%d", f.ids),
		UserID:         f.profile.ID,
		Title:          req.Title,
		Type:           "general",
		Priority:       models.PriorityNormal,
		Blueprint:      req.Blueprint,
		Resources:      map[string]any{},
		RequiredSkills: []string{},
		Status:         models.MissionPending,
		AssignedAgents: append([]string{}, req.AgentIDs...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.missions = append(f.missions, m)
	return &m, nil
}

func (f *fakePersistence) UpdateMission(ctx context.Context, id string, patch models.MissionPatch) (*models.Mission, error) {
	if err := f.enter("UpdateMission"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.mission(id)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.ApplyPatch(&f.missions[i], patch, f.tick()); err != nil {
		return nil, err
	}
	m := f.missions[i].Clone()
	return &m, nil
}

func (f *fakePersistence) DeleteMission(ctx context.Context, id string) error {
	if err := f.enter("DeleteMission"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.mission(id)
	if err != nil {
		return err
	}
	f.missions = append(f.missions[:i], f.missions[i+1:]...)
	return nil
}

func (f *fakePersistence) AssignAgents(ctx context.Context, missionID string, agentIDs []string) (*models.Mission, error) {
	if err := f.enter("AssignAgents"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.mission(missionID)
	if err != nil {
		return nil, err
	}
	f.missions[i].AssignedAgents = append(f.missions[i].AssignedAgents, agentIDs...)
	f.missions[i].UpdatedAt = f.tick()
	m := f.missions[i].Clone()
	return &m, nil
}

func (f *fakePersistence) ListZones(ctx context.Context) ([]models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Zone(nil), f.zones...), nil
}

func (f *fakePersistence) CreateZone(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error) {
	if err := f.enter("CreateZone"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids++
	z := models.Zone{ID: fmt.Sprintf("zone-%d", f.ids), UserID: f.profile.ID, Type: req.Type, Name: req.Name}
	f.zones = append(f.zones, z)
	return &z, nil
}

func (f *fakePersistence) UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error) {
	if err := f.enter("UpsertAPIKey"); err != nil {
		return nil, err
	}
	return &models.APIKey{ID: "key-1", UserID: "u1", Provider: req.Provider}, nil
}

func idleAgent(id string) models.Agent {
	return models.Agent{
		ID:        id,
		UserID:    "u1",
		Name:      "Agent " + id,
		Class:     models.ClassScout,
		Status:    models.AgentIdle,
		Skills:    []string{"web_search"},
		Level:     1,
		UpdatedAt: t0,
	}
}

func missionWith(id string, status models.MissionStatus, agents ...string) models.Mission {
	return models.Mission{
		ID:             id,
		UserID:         "u1",
		Title:          "Mission " + id,
		Type:           "general",
		Priority:       models.PriorityNormal,
		Blueprint:      models.Blueprint{Prompt: "do it"},
		Resources:      map[string]any{},
		Status:         status,
		AssignedAgents: agents,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

// newTestController bootstraps a controller over f with a fixed clock
func newTestController(f *fakePersistence) *Controller {
	n := 0
	c := New(f,
		WithClock(func() time.Time { return t0 }),
		WithIDs(func() string { n++; return fmt.Sprintf("%d", n) }),
	)
	if err := c.Bootstrap(context.Background()); err != nil {
		panic(err)
	}
	return c
}
