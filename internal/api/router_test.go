package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qninhdt/c3/server/internal/auth"
	"github.com/qninhdt/c3/server/internal/db"
	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
)

type recordingHub struct {
	mu     sync.Mutex
	events map[string][]events.Event
}

func (h *recordingHub) Publish(userID string, ev events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[userID] = append(h.events[userID], ev)
}

func (h *recordingHub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *recordingHub) types(userID string) []events.Type {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Type
	for _, ev := range h.events[userID] {
		out = append(out, ev.Type)
	}
	return out
}

func (h *recordingHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make(map[string][]events.Event)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	*Server
	hub *recordingHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sealer, err := auth.NewSealer("test key secret")
	require.NoError(t, err)

	hub := &recordingHub{events: make(map[string][]events.Event)}
	s := NewServer(Deps{
		DB:       database,
		Sessions: auth.NewSessions("test jwt secret", time.Hour),
		Sealer:   sealer,
		Events:   hub,
		Logger:   zap.NewNop(),
	}, Options{BcryptCost: 4})
	return &testServer{Server: s, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) register(t *testing.T, email string) signupResponse {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/signup", "", models.SignupRequest{
		Email:    email,
		Password: "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var out signupResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/signup", "", models.SignupRequest{
		Email:    "  Commander@Example.com ",
		Password: "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	out := decodeData[signupResponse](t, env)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "commander@example.com", out.User.Email)
	assert.Len(t, out.Zones, 4)
	assert.Len(t, out.Agents, 3)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "c3-session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, out.Token, cookies[0].Value)

	rec, env = s.do(t, http.MethodPost, "/api/auth/signup", "", models.SignupRequest{
		Email:    "commander@example.com",
		Password: "another password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "Email already registered")
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/signup", "", models.SignupRequest{Email: "nope", Password: "correct horse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "email")

	rec, env = s.do(t, http.MethodPost, "/api/auth/signup", "", models.SignupRequest{Email: "a@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "password")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "pilot@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "Pilot@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeData[models.Session](t, env)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "pilot@example.com", session.User.Email)

	for _, req := range []models.LoginRequest{
		{Email: "pilot@example.com", Password: "wrong password"},
		{Email: "ghost@example.com", Password: "correct horse"},
	} {
		rec, env := s.do(t, http.MethodPost, "/api/auth/login", "", req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", env.Error)
	}
}

func TestSession(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/auth/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":null}`, rec.Body.String())

	out := s.register(t, "pilot@example.com")
	rec, env := s.do(t, http.MethodGet, "/api/auth/session", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, out.User.ID, decodeData[models.UserProfile](t, env).ID)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/profile", "/api/agents", "/api/missions", "/api/zones", "/api/keys", "/api/templates"} {
		rec, env := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.False(t, env.Success)
	}

	rec, _ := s.do(t, http.MethodGet, "/api/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")

	base := "Outpost Nine"
	done := true
	rec, env := s.do(t, http.MethodPatch, "/api/profile", out.Token, models.ProfilePatch{BaseName: &base, OnboardingCompleted: &done})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)

	profile := decodeData[models.UserProfile](t, env)
	assert.Equal(t, "Outpost Nine", profile.BaseName)
	assert.True(t, profile.OnboardingCompleted)

	step := 9
	rec, _ = s.do(t, http.MethodPatch, "/api/profile", out.Token, models.ProfilePatch{OnboardingStep: &step})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOnboardingScenario(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "recruit@example.com")
	require.Len(t, out.Agents, 3)

	done, step := true, 5
	base := "Forward Base"
	rec, env := s.do(t, http.MethodPatch, "/api/profile", out.Token, models.ProfilePatch{
		BaseName:            &base,
		OnboardingCompleted: &done,
		OnboardingStep:      &step,
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)

	rec, env = s.do(t, http.MethodGet, "/api/auth/session", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeData[models.UserProfile](t, env)
	assert.True(t, profile.OnboardingCompleted)
	assert.Equal(t, 5, profile.OnboardingStep)
	assert.Equal(t, "Forward Base", profile.BaseName)

	rec, env = s.do(t, http.MethodGet, "/api/agents", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agents := decodeData[[]models.Agent](t, env)
	require.Len(t, agents, 3)
	for _, a := range agents {
		assert.Equal(t, models.AgentIdle, a.Status, a.Name)
		assert.Empty(t, a.CurrentMissionID)
	}
}

func TestAgents(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")
	s.hub.reset()

	rec, env := s.do(t, http.MethodGet, "/api/templates", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ids []string
	for _, tmpl := range decodeData[[]map[string]any](t, env) {
		ids = append(ids, tmpl["id"].(string))
	}
	assert.ElementsMatch(t, []string{"scout-basic", "builder-basic"}, ids)

	rec, env = s.do(t, http.MethodGet, "/api/templates?class=builder", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	builders := decodeData[[]map[string]any](t, env)
	require.Len(t, builders, 1)
	assert.Equal(t, "builder-basic", builders[0]["id"])

	rec, _ = s.do(t, http.MethodGet, "/api/templates?class=wizard", out.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/agents", out.Token, models.CreateAgentRequest{TemplateID: "scout-basic", Name: "Recon One"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	agent := decodeData[models.Agent](t, env)
	assert.Equal(t, "Recon One", agent.Name)
	assert.Equal(t, models.AgentIdle, agent.Status)
	assert.Equal(t, []events.Type{events.TypeAgentUpdated}, s.hub.types(out.User.ID))

	rec, env = s.do(t, http.MethodPost, "/api/agents", out.Token, models.CreateAgentRequest{TemplateID: "no-such-template"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "invalid template")

	rec, env = s.do(t, http.MethodPost, "/api/agents", out.Token, models.CreateAgentRequest{TemplateID: "scout-research"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "Research Scout is not unlocked yet")

	rec, env = s.do(t, http.MethodGet, "/api/agents", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]models.Agent](t, env), 4)

	rec, env = s.do(t, http.MethodGet, `/api/agents?filter=class+%3D%3D+%22scout%22`, out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	for _, a := range decodeData[[]models.Agent](t, env) {
		assert.Equal(t, models.ClassScout, a.Class)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/agents?filter=%29%28", out.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissionLifecycle(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")
	s.hub.reset()
	scout := out.Agents[0]

	rec, env := s.do(t, http.MethodPost, "/api/missions", out.Token, models.CreateMissionRequest{
		Title:     "  Survey the ridge ",
		Blueprint: models.Blueprint{Prompt: "Map the northern ridge"},
		AgentIDs:  []string{scout.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	mission := decodeData[models.Mission](t, env)
	assert.Equal(t, "Survey the ridge", mission.Title)
	assert.Equal(t, models.MissionPending, mission.Status)
	assert.Equal(t, []string{scout.ID}, mission.AssignedAgents)
	assert.Equal(t, []events.Type{events.TypeMissionUpdated, events.TypeAgentUpdated}, s.hub.types(out.User.ID))

	path := "/api/missions/" + mission.ID
	status := models.MissionInProgress
	rec, env = s.do(t, http.MethodPatch, path, out.Token, models.MissionPatch{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.NotNil(t, decodeData[models.Mission](t, env).StartedAt)

	s.hub.reset()
	progress := 40
	rec, _ = s.do(t, http.MethodPatch, path, out.Token, models.MissionPatch{Progress: &progress})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []events.Type{events.TypeMissionProgress}, s.hub.types(out.User.ID))

	s.hub.reset()
	status = models.MissionCompleted
	rec, env = s.do(t, http.MethodPatch, path, out.Token, models.MissionPatch{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	done := decodeData[models.Mission](t, env)
	assert.Equal(t, models.MissionCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, []events.Type{events.TypeMissionCompleted, events.TypeAgentUpdated}, s.hub.types(out.User.ID))

	rec, env = s.do(t, http.MethodGet, "/api/agents", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, a := range decodeData[[]models.Agent](t, env) {
		if a.ID == scout.ID {
			assert.Equal(t, models.AgentReturning, a.Status)
			assert.Empty(t, a.CurrentMissionID)
			assert.Equal(t, scout.MissionsCompleted+1, a.MissionsCompleted)
		}
	}

	status = models.MissionInProgress
	rec, _ = s.do(t, http.MethodPatch, path, out.Token, models.MissionPatch{Status: &status})
	assert.Equal(t, http.StatusConflict, rec.Code)

	progress = 140
	rec, _ = s.do(t, http.MethodPatch, path, out.Token, models.MissionPatch{Progress: &progress})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMission_Errors(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/missions", out.Token, models.CreateMissionRequest{Title: "No prompt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "blueprint.prompt")

	rec, _ = s.do(t, http.MethodPost, "/api/missions", out.Token, models.CreateMissionRequest{
		Title:     "Ghost crew",
		Blueprint: models.Blueprint{Prompt: "x"},
		AgentIDs:  []string{"missing-agent"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/missions", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+out.Token)
	raw := httptest.NewRecorder()
	s.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Contains(t, raw.Body.String(), "Invalid request body")
}

func TestAssignAndDeleteMission(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/missions", out.Token, models.CreateMissionRequest{
		Title:     "Build a bridge",
		Blueprint: models.Blueprint{Prompt: "Span the river"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	mission := decodeData[models.Mission](t, env)
	path := "/api/missions/" + mission.ID

	rec, _ = s.do(t, http.MethodPost, path+"/agents", out.Token, models.AssignAgentsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ids := []string{out.Agents[0].ID, out.Agents[1].ID}
	rec, env = s.do(t, http.MethodPost, path+"/agents", out.Token, models.AssignAgentsRequest{AgentIDs: ids})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.ElementsMatch(t, ids, decodeData[models.Mission](t, env).AssignedAgents)

	s.hub.reset()
	rec, _ = s.do(t, http.MethodDelete, path, out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []events.Type{events.TypeMissionDeleted, events.TypeAgentUpdated, events.TypeAgentUpdated}, s.hub.types(out.User.ID))

	rec, env = s.do(t, http.MethodGet, "/api/agents", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, a := range decodeData[[]models.Agent](t, env) {
		assert.Equal(t, models.AgentIdle, a.Status, a.Name)
		assert.Empty(t, a.CurrentMissionID)
	}

	rec, _ = s.do(t, http.MethodGet, path, out.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, path, out.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissionsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/missions", alice.Token, models.CreateMissionRequest{
		Title:     "Private",
		Blueprint: models.Blueprint{Prompt: "secret"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	mission := decodeData[models.Mission](t, env)

	rec, _ = s.do(t, http.MethodGet, "/api/missions/"+mission.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/missions", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]models.Mission](t, env))
	assert.Empty(t, s.hub.types(bob.User.ID))
}

func TestZones(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")
	s.hub.reset()

	rec, env := s.do(t, http.MethodPost, "/api/zones", out.Token, models.CreateZoneRequest{Type: models.ZoneWorkshop, Name: "Forge"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	zone := decodeData[models.Zone](t, env)
	assert.Equal(t, "Forge", zone.Name)
	assert.Equal(t, []events.Type{events.TypeZoneUpdated}, s.hub.types(out.User.ID))

	rec, _ = s.do(t, http.MethodPost, "/api/zones", out.Token, models.CreateZoneRequest{Type: "moonbase", Name: "Nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/zones", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	zones := decodeData[[]models.Zone](t, env)
	require.Len(t, zones, 5)
	assert.Equal(t, zone.ID, zones[4].ID)
}

func TestAPIKeys(t *testing.T) {
	s := newTestServer(t)
	out := s.register(t, "pilot@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/keys", out.Token, models.UpsertAPIKeyRequest{
		Provider: models.ProviderAnthropic,
		Key:      " sk-ant-secret ",
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.NotContains(t, rec.Body.String(), "sk-ant-secret")

	plain, err := s.providerKey(context.Background(), out.User.ID, models.ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret", plain)

	rec, env = s.do(t, http.MethodGet, "/api/keys", out.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	keys := decodeData[[]models.APIKey](t, env)
	require.Len(t, keys, 1)
	assert.Equal(t, models.ProviderAnthropic, keys[0].Provider)
	assert.True(t, keys[0].IsValid)
	assert.NotNil(t, keys[0].LastValidatedAt)
	assert.NotContains(t, rec.Body.String(), "sk-ant-secret")

	rec, _ = s.do(t, http.MethodDelete, "/api/keys?provider=anthropic", out.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/keys?provider=anthropic", out.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/keys?provider=myspace", out.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestWriteErrorSanitizes(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusInternalServerError, "sql: database is locked")
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, rec.Body.String())

	assert.Equal(t, http.StatusConflict, statusFor(models.ErrConflict))
	assert.Equal(t, http.StatusBadRequest, statusFor(models.Invalid("x", "bad")))
}
