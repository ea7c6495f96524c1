package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qninhdt/c3/server/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func signup(t *testing.T, db *DB, email string) *models.SignupResult {
	t.Helper()
	res, err := db.Signup(context.Background(), email, "hash", "Commander")
	require.NoError(t, err)
	return res
}

func statusPtr(s models.MissionStatus) *models.MissionStatus { return &s }
func intPtr(i int) *int                                    { return &i }

func TestSignup_SeedsZonesAndAgents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res := signup(t, db, "a@example.com")
	require.NotNil(t, res.Profile)
	assert.Equal(t, "a@example.com", res.Profile.Email)
	assert.Equal(t, models.TierFree, res.Profile.Tier)
	assert.Equal(t, 1, res.Profile.Level)
	assert.Equal(t, "Command Base", res.Profile.BaseName)
	assert.False(t, res.Profile.OnboardingCompleted)
	assert.Equal(t, []string{}, res.Profile.Achievements)

	zones, err := db.ListZones(ctx, res.Profile.ID)
	require.NoError(t, err)
	require.Len(t, zones, 4)
	assert.Equal(t, "Barracks", zones[0].Name)
	assert.Equal(t, 20, zones[0].MaxCapacity)
	assert.Equal(t, models.Position3D{X: -30}, zones[0].Position)
	assert.Equal(t, "#F59E0B", zones[3].Color)

	agents, err := db.ListAgents(ctx, res.Profile.ID)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, "Scout Alpha", agents[0].Name)
	assert.Equal(t, []string{"web_search", "document_analysis", "synthesis"}, agents[0].Skills)
	assert.Equal(t, models.AgentStats{Speed: 8, Accuracy: 6, Stamina: 5, Versatility: 7}, agents[0].Stats)
	assert.Equal(t, "Builder Prime", agents[1].Name)
	assert.Equal(t, "Courier Swift", agents[2].Name)
	assert.Equal(t, models.Position3D{X: -25, Z: 5}, agents[2].Position)
	for _, a := range agents {
		assert.Equal(t, models.AgentIdle, a.Status)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	signup(t, db, "a@example.com")

	_, err := db.Signup(context.Background(), "a@example.com", "hash", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Email already registered")

	creds, err := db.CredentialsByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", creds.PasswordHash)

	_, err = db.CredentialsByEmail(context.Background(), "b@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")

	done := true
	base := "Forward Base"
	avatar := models.AvatarStrategist
	p, err := db.UpdateProfile(ctx, res.Profile.ID, models.ProfilePatch{
		OnboardingCompleted: &done,
		OnboardingStep:      intPtr(5),
		BaseName:            &base,
		CommanderAvatar:     &avatar,
	})
	require.NoError(t, err)
	assert.True(t, p.OnboardingCompleted)
	assert.Equal(t, 5, p.OnboardingStep)
	assert.Equal(t, "Forward Base", p.BaseName)
	assert.Equal(t, models.AvatarStrategist, p.CommanderAvatar)

	_, err = db.UpdateProfile(ctx, "nobody", models.ProfilePatch{BaseName: &base})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateMission_DeploysAgents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1, a2 := res.Agents[0].ID, res.Agents[1].ID

	change, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title:     "Recon",
		Blueprint: models.Blueprint{Prompt: "look around"},
		AgentIDs:  []string{a1, a2, a1},
	})
	require.NoError(t, err)

	m := change.Mission
	assert.Equal(t, models.MissionPending, m.Status)
	assert.Equal(t, "general", m.Type)
	assert.Equal(t, models.PriorityNormal, m.Priority)
	assert.Equal(t, []string{a1, a2}, m.AssignedAgents)
	require.Len(t, change.Agents, 2)

	got, err := db.GetMission(ctx, userID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1, a2}, got.AssignedAgents)
	assert.Equal(t, map[string]any{}, got.Resources)
	assert.Equal(t, "look around", got.Blueprint.Prompt)

	agent, err := db.GetAgent(ctx, userID, a1)
	require.NoError(t, err)
	assert.Equal(t, models.AgentDeploying, agent.Status)
	assert.Equal(t, m.ID, agent.CurrentMissionID)
}

func TestCreateMission_RejectsBusyAndUnknownAgents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1 := res.Agents[0].ID

	_, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "First", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1},
	})
	require.NoError(t, err)

	_, err = db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Second", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1},
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Third", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{"ghost"},
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	other := signup(t, db, "b@example.com")
	_, err = db.CreateMission(ctx, other.Profile.ID, models.CreateMissionRequest{
		Title: "Steal", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{res.Agents[1].ID},
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput, "agents of other users are unknown")

	missions, err := db.ListMissions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, missions, 1, "failed creates leave nothing behind")
}

func TestUpdateMission_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1, a2 := res.Agents[0].ID, res.Agents[1].ID

	change, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Build", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1, a2},
	})
	require.NoError(t, err)
	id := change.Mission.ID

	started, err := db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionInProgress)})
	require.NoError(t, err)
	require.NotNil(t, started.Mission.StartedAt)
	firstStart := *started.Mission.StartedAt

	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionPaused)})
	require.NoError(t, err)
	resumed, err := db.UpdateMission(ctx, userID, id, models.MissionPatch{
		Status:   statusPtr(models.MissionInProgress),
		Progress: intPtr(60),
	})
	require.NoError(t, err)
	assert.True(t, firstStart.Equal(*resumed.Mission.StartedAt), "startedAt is stamped once")
	assert.Equal(t, 60, resumed.Mission.Progress)

	done, err := db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionCompleted)})
	require.NoError(t, err)
	assert.NotNil(t, done.Mission.CompletedAt)
	assert.Len(t, done.Agents, 2)

	for _, aid := range []string{a1, a2} {
		a, err := db.GetAgent(ctx, userID, aid)
		require.NoError(t, err)
		assert.Equal(t, models.AgentReturning, a.Status)
		assert.Empty(t, a.CurrentMissionID)
		assert.Equal(t, 1, a.MissionsCompleted)
	}

	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionInProgress)})
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Progress: intPtr(101)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = db.UpdateMission(ctx, userID, "missing", models.MissionPatch{Progress: intPtr(1)})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateMission_FailedDoesNotCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1 := res.Agents[0].ID

	change, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Risky", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1},
	})
	require.NoError(t, err)
	_, err = db.UpdateMission(ctx, userID, change.Mission.ID, models.MissionPatch{Status: statusPtr(models.MissionInProgress)})
	require.NoError(t, err)

	msg := "exploded"
	_, err = db.UpdateMission(ctx, userID, change.Mission.ID, models.MissionPatch{
		Status: statusPtr(models.MissionFailed),
		Error:  &msg,
	})
	require.NoError(t, err)

	a, err := db.GetAgent(ctx, userID, a1)
	require.NoError(t, err)
	assert.Equal(t, models.AgentReturning, a.Status)
	assert.Equal(t, 0, a.MissionsCompleted)

	m, err := db.GetMission(ctx, userID, change.Mission.ID)
	require.NoError(t, err)
	assert.Equal(t, "exploded", m.Error)
}

func TestDeleteMission_ReleasesToIdle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1 := res.Agents[0].ID

	change, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Temp", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1},
	})
	require.NoError(t, err)

	released, err := db.DeleteMission(ctx, userID, change.Mission.ID)
	require.NoError(t, err)
	require.Len(t, released, 1)

	a, err := db.GetAgent(ctx, userID, a1)
	require.NoError(t, err)
	assert.Equal(t, models.AgentIdle, a.Status)
	assert.Empty(t, a.CurrentMissionID)

	_, err = db.GetMission(ctx, userID, change.Mission.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = db.DeleteMission(ctx, userID, change.Mission.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteMission_AfterCompletionResetsAgents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1, a2, a3 := res.Agents[0].ID, res.Agents[1].ID, res.Agents[2].ID

	done, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Finished", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1, a2},
	})
	require.NoError(t, err)
	id := done.Mission.ID

	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionInProgress)})
	require.NoError(t, err)
	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionCompleted)})
	require.NoError(t, err)

	// a2 moves on to another mission before the finished one is deleted.
	other, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Next", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a2, a3},
	})
	require.NoError(t, err)

	released, err := db.DeleteMission(ctx, userID, id)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, a1, released[0].ID)

	a, err := db.GetAgent(ctx, userID, a1)
	require.NoError(t, err)
	assert.Equal(t, models.AgentIdle, a.Status)
	assert.Empty(t, a.CurrentMissionID)

	a, err = db.GetAgent(ctx, userID, a2)
	require.NoError(t, err)
	assert.Equal(t, models.AgentDeploying, a.Status)
	assert.Equal(t, other.Mission.ID, a.CurrentMissionID)
}

func TestAssignAgents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID
	a1, a2 := res.Agents[0].ID, res.Agents[1].ID

	change, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
		Title: "Grow", Blueprint: models.Blueprint{Prompt: "p"}, AgentIDs: []string{a1},
	})
	require.NoError(t, err)
	id := change.Mission.ID

	assigned, err := db.AssignAgents(ctx, userID, id, []string{a1, a2})
	require.NoError(t, err)
	assert.Equal(t, []string{a1, a2}, assigned.Mission.AssignedAgents)
	require.Len(t, assigned.Agents, 1)
	assert.Equal(t, a2, assigned.Agents[0].ID)

	_, err = db.UpdateMission(ctx, userID, id, models.MissionPatch{Status: statusPtr(models.MissionCancelled)})
	require.NoError(t, err)

	_, err = db.AssignAgents(ctx, userID, id, []string{res.Agents[2].ID})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestListMissions_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID

	for _, title := range []string{"one", "two", "three"} {
		_, err := db.CreateMission(ctx, userID, models.CreateMissionRequest{
			Title: title, Blueprint: models.Blueprint{Prompt: "p"},
		})
		require.NoError(t, err)
	}

	missions, err := db.ListMissions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, missions, 3)
	assert.Equal(t, "three", missions[0].Title)
	assert.Equal(t, []string{}, missions[0].AssignedAgents)

	other := signup(t, db, "b@example.com")
	theirs, err := db.ListMissions(ctx, other.Profile.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCreateZone_Defaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")

	z, err := db.CreateZone(ctx, res.Profile.ID, models.CreateZoneRequest{Type: models.ZoneWorkshop, Name: "Forge"})
	require.NoError(t, err)
	assert.Equal(t, models.Size3D{Width: 10, Height: 10, Depth: 10}, z.Size)
	assert.Equal(t, 5, z.MaxCapacity)
	assert.Equal(t, "#4a90d9", z.Color)

	zones, err := db.ListZones(ctx, res.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, zones, 5)
}

func TestAPIKeys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	res := signup(t, db, "a@example.com")
	userID := res.Profile.ID

	first, err := db.UpsertAPIKey(ctx, userID, models.ProviderAnthropic, []byte("sealed-1"))
	require.NoError(t, err)
	second, err := db.UpsertAPIKey(ctx, userID, models.ProviderAnthropic, []byte("sealed-2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps one record per provider")
	assert.True(t, second.IsValid)
	require.NotNil(t, second.LastValidatedAt)

	sealed, err := db.SealedAPIKey(ctx, userID, models.ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed-2"), sealed)

	keys, err := db.ListAPIKeys(ctx, userID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, models.ProviderAnthropic, keys[0].Provider)
	assert.True(t, keys[0].IsValid)
	assert.NotNil(t, keys[0].LastValidatedAt)

	require.NoError(t, db.DeleteAPIKey(ctx, userID, models.ProviderAnthropic))
	assert.ErrorIs(t, db.DeleteAPIKey(ctx, userID, models.ProviderAnthropic), models.ErrNotFound)
}
