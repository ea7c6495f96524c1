package models

import "time"

// Position3D is a point in map space
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Size3D is the extent of a zone
type Size3D struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// AgentClass is the fixed set of agent archetypes
type AgentClass string

const (
	ClassScout     AgentClass = "scout"
	ClassBuilder   AgentClass = "builder"
	ClassGuardian  AgentClass = "guardian"
	ClassCourier   AgentClass = "courier"
	ClassAnalyst   AgentClass = "analyst"
	ClassCommander AgentClass = "commander"
)

// Valid reports whether c is a known class
func (c AgentClass) Valid() bool {
	switch c {
	case ClassScout, ClassBuilder, ClassGuardian, ClassCourier, ClassAnalyst, ClassCommander:
		return true
	}
	return false
}

// AgentStatus is what an agent is currently doing
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentDeploying AgentStatus = "deploying"
	AgentWorking   AgentStatus = "working"
	AgentReturning AgentStatus = "returning"
	AgentResting   AgentStatus = "resting"
	AgentError     AgentStatus = "error"
	AgentOffline   AgentStatus = "offline"
)

// AgentStats is the stat block copied from a template
type AgentStats struct {
	Speed       int `json:"speed"`
	Accuracy    int `json:"accuracy"`
	Stamina     int `json:"stamina"`
	Versatility int `json:"versatility"`
}

// Agent is a worker owned by a user
type Agent struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	TemplateID          string      `json:"template_id"`
	Name                string      `json:"name"`
	Class               AgentClass  `json:"class"`
	Status              AgentStatus `json:"status"`
	Position            Position3D  `json:"position"`
	TargetPosition      *Position3D `json:"target_position,omitempty"`
	CurrentMissionID    string      `json:"current_mission_id,omitempty"`
	Level               int         `json:"level"`
	Experience          int         `json:"experience"`
	Stats               AgentStats  `json:"stats"`
	Skills              []string    `json:"skills"`
	MissionsCompleted   int         `json:"missions_completed"`
	TotalTasksCompleted int         `json:"total_tasks_completed"`
	SuccessRate         float64     `json:"success_rate"`
	ControlGroup        int         `json:"control_group,omitempty"`
	CustomAvatar        string      `json:"custom_avatar,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
	LastActiveAt        time.Time   `json:"last_active_at"`
}

// OnMission reports whether the agent is linked to a mission
func (a *Agent) OnMission() bool {
	return a.CurrentMissionID != ""
}

// Clone returns a deep copy of the agent
func (a Agent) Clone() Agent {
	out := a
	out.Skills = append([]string(nil), a.Skills...)
	if a.TargetPosition != nil {
		p := *a.TargetPosition
		out.TargetPosition = &p
	}
	return out
}

// MissionStatus is a state of the mission lifecycle
type MissionStatus string

const (
	MissionPending    MissionStatus = "pending"
	MissionInProgress MissionStatus = "in_progress"
	MissionPaused     MissionStatus = "paused"
	MissionCompleted  MissionStatus = "completed"
	MissionFailed     MissionStatus = "failed"
	MissionCancelled  MissionStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionPending, MissionInProgress, MissionPaused, MissionCompleted, MissionFailed, MissionCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s MissionStatus) IsTerminal() bool {
	return s == MissionCompleted || s == MissionFailed || s == MissionCancelled
}

// MissionPriority orders missions for display
type MissionPriority string

const (
	PriorityLow    MissionPriority = "low"
	PriorityNormal MissionPriority = "normal"
	PriorityHigh   MissionPriority = "high"
	PriorityUrgent MissionPriority = "urgent"
)

// Valid reports whether p is a known priority
func (p MissionPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Blueprint is the work order handed to assigned agents
type Blueprint struct {
	Prompt         string   `json:"prompt"`
	Context        string   `json:"context,omitempty"`
	ExpectedOutput string   `json:"expected_output,omitempty"`
	Constraints    []string `json:"constraints,omitempty"`
}

// Artifact is a named piece of mission output
type Artifact struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// LogEntry is one line of mission output log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
}

// MissionOutput is the result produced by a mission
type MissionOutput struct {
	Result    string     `json:"result,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Logs      []LogEntry `json:"logs,omitempty"`
}

// Mission is a task owned by a user
type Mission struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Type              string          `json:"type"`
	Priority          MissionPriority `json:"priority"`
	Blueprint         Blueprint       `json:"blueprint"`
	Resources         map[string]any  `json:"resources"`
	RequiredSkills    []string        `json:"required_skills"`
	ZoneID            string          `json:"zone_id,omitempty"`
	Position          Position3D      `json:"position"`
	Status            MissionStatus   `json:"status"`
	Progress          int             `json:"progress"`
	Output            MissionOutput   `json:"output"`
	Error             string          `json:"error,omitempty"`
	AssignedAgents    []string        `json:"assigned_agents"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	EstimatedDuration *int            `json:"estimated_duration,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the mission
func (m Mission) Clone() Mission {
	out := m
	out.Blueprint.Constraints = append([]string(nil), m.Blueprint.Constraints...)
	out.Resources = make(map[string]any, len(m.Resources))
	for k, v := range m.Resources {
		out.Resources[k] = v
	}
	out.RequiredSkills = append([]string(nil), m.RequiredSkills...)
	out.AssignedAgents = append([]string(nil), m.AssignedAgents...)
	out.Output.Artifacts = append([]Artifact(nil), m.Output.Artifacts...)
	out.Output.Logs = append([]LogEntry(nil), m.Output.Logs...)
	if m.StartedAt != nil {
		t := *m.StartedAt
		out.StartedAt = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		out.CompletedAt = &t
	}
	if m.EstimatedDuration != nil {
		d := *m.EstimatedDuration
		out.EstimatedDuration = &d
	}
	return out
}

// HasAgent reports whether agentID is assigned to the mission
func (m *Mission) HasAgent(agentID string) bool {
	for _, id := range m.AssignedAgents {
		if id == agentID {
			return true
		}
	}
	return false
}

// ZoneType is the role of a map zone
type ZoneType string

const (
	ZoneBarracks  ZoneType = "barracks"
	ZoneMission   ZoneType = "mission"
	ZoneWorkshop  ZoneType = "workshop"
	ZoneArchive   ZoneType = "archive"
	ZonePowercore ZoneType = "powercore"
)

// Valid reports whether t is a known zone type
func (t ZoneType) Valid() bool {
	switch t {
	case ZoneBarracks, ZoneMission, ZoneWorkshop, ZoneArchive, ZonePowercore:
		return true
	}
	return false
}

// ZoneStatus describes zone occupancy
type ZoneStatus string

const (
	ZoneEmpty  ZoneStatus = "empty"
	ZoneActive ZoneStatus = "active"
	ZoneFull   ZoneStatus = "full"
	ZoneLocked ZoneStatus = "locked"
)

// Zone is a display anchor on the command map
type Zone struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Type          ZoneType   `json:"type"`
	Name          string     `json:"name"`
	Position      Position3D `json:"position"`
	Size          Size3D     `json:"size"`
	MaxCapacity   int        `json:"max_capacity"`
	CurrentAgents []string   `json:"current_agents"`
	Status        ZoneStatus `json:"status"`
	Color         string     `json:"color"`
	MissionID     string     `json:"mission_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UserTier gates agent templates
type UserTier string

const (
	TierFree       UserTier = "free"
	TierPro        UserTier = "pro"
	TierEnterprise UserTier = "enterprise"
)

// Rank returns the position of t in free < pro < enterprise, or -1
func (t UserTier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPro:
		return 1
	case TierEnterprise:
		return 2
	}
	return -1
}

// AtLeast reports whether t is ranked at or above other
func (t UserTier) AtLeast(other UserTier) bool {
	r := t.Rank()
	return r >= 0 && r >= other.Rank()
}

// CommanderAvatar is the cosmetic commander choice
type CommanderAvatar string

const (
	AvatarGeneral     CommanderAvatar = "general"
	AvatarEngineer    CommanderAvatar = "engineer"
	AvatarStrategist  CommanderAvatar = "strategist"
	AvatarSpeedrunner CommanderAvatar = "speedrunner"
)

// Valid reports whether a is a known avatar
func (a CommanderAvatar) Valid() bool {
	switch a {
	case AvatarGeneral, AvatarEngineer, AvatarStrategist, AvatarSpeedrunner:
		return true
	}
	return false
}

// MissionType is the user's primary mission preference
type MissionType string

const (
	MissionTypeCoding     MissionType = "coding"
	MissionTypeResearch   MissionType = "research"
	MissionTypeContent    MissionType = "content"
	MissionTypeAutomation MissionType = "automation"
	MissionTypeMixed      MissionType = "mixed"
)

// Valid reports whether t is a known mission type
func (t MissionType) Valid() bool {
	switch t {
	case MissionTypeCoding, MissionTypeResearch, MissionTypeContent, MissionTypeAutomation, MissionTypeMixed:
		return true
	}
	return false
}

// UserProfile is the account and progression state of a user
type UserProfile struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	DisplayName         string          `json:"display_name,omitempty"`
	AvatarURL           string          `json:"avatar_url,omitempty"`
	CommanderAvatar     CommanderAvatar `json:"commander_avatar"`
	BaseName            string          `json:"base_name"`
	PrimaryMissionType  MissionType     `json:"primary_mission_type"`
	Tier                UserTier        `json:"tier"`
	Level               int             `json:"level"`
	Experience          int             `json:"experience"`
	Achievements        []string        `json:"achievements"`
	OnboardingCompleted bool            `json:"onboarding_completed"`
	OnboardingStep      int             `json:"onboarding_step"`
	LastActiveAt        time.Time       `json:"last_active_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// APIProvider is a third-party service a key belongs to
type APIProvider string

const (
	ProviderAnthropic APIProvider = "anthropic"
	ProviderOpenAI    APIProvider = "openai"
	ProviderGitHub    APIProvider = "github"
	ProviderGoogle    APIProvider = "google"
	ProviderSlack     APIProvider = "slack"
	ProviderNotion    APIProvider = "notion"
)

// Valid reports whether p is a known provider
func (p APIProvider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGitHub, ProviderGoogle, ProviderSlack, ProviderNotion:
		return true
	}
	return false
}

// APIKey describes a stored key without its secret
type APIKey struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Provider        APIProvider `json:"provider"`
	IsValid         bool        `json:"is_valid"`
	LastValidatedAt *time.Time  `json:"last_validated_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NotificationType is the severity of a notification
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is a transient message for the commander
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	ExpiresAt time.Time        `json:"expires_at"`
}
