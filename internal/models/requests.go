package models

// CreateAgentRequest instantiates an agent from a template
type CreateAgentRequest struct {
	TemplateID string      `json:"template_id"`
	Name       string      `json:"name,omitempty"`
	Position   *Position3D `json:"position,omitempty"`
}

// CreateMissionRequest creates a mission, optionally with an initial assignment
type CreateMissionRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Type              string          `json:"type,omitempty"`
	Priority          MissionPriority `json:"priority,omitempty"`
	Blueprint         Blueprint       `json:"blueprint"`
	Resources         map[string]any  `json:"resources,omitempty"`
	RequiredSkills    []string        `json:"required_skills,omitempty"`
	ZoneID            string          `json:"zone_id,omitempty"`
	Position          *Position3D     `json:"position,omitempty"`
	EstimatedDuration *int            `json:"estimated_duration,omitempty"`
	AgentIDs          []string        `json:"agent_ids,omitempty"`
}

// MissionPatch is a partial mission update; nil fields are left untouched
type MissionPatch struct {
	Status   *MissionStatus `json:"status,omitempty"`
	Progress *int           `json:"progress,omitempty"`
	Output   *MissionOutput `json:"output,omitempty"`
	Error    *string        `json:"error,omitempty"`
}

// AssignAgentsRequest links agents to an existing mission
type AssignAgentsRequest struct {
	AgentIDs []string `json:"agent_ids"`
}

// CreateZoneRequest creates a map zone
type CreateZoneRequest struct {
	Type        ZoneType    `json:"type"`
	Name        string      `json:"name"`
	Position    *Position3D `json:"position,omitempty"`
	Size        *Size3D     `json:"size,omitempty"`
	MaxCapacity int         `json:"max_capacity,omitempty"`
	Color       string      `json:"color,omitempty"`
}

// ProfilePatch is a partial profile update; nil fields are left untouched
type ProfilePatch struct {
	DisplayName         *string          `json:"display_name,omitempty"`
	CommanderAvatar     *CommanderAvatar `json:"commander_avatar,omitempty"`
	BaseName            *string          `json:"base_name,omitempty"`
	PrimaryMissionType  *MissionType     `json:"primary_mission_type,omitempty"`
	OnboardingCompleted *bool            `json:"onboarding_completed,omitempty"`
	OnboardingStep      *int             `json:"onboarding_step,omitempty"`
}

// UpsertAPIKeyRequest stores or replaces the key for a provider
type UpsertAPIKeyRequest struct {
	Provider APIProvider `json:"provider"`
	Key      string      `json:"key"`
}

// SignupRequest creates an account
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest exchanges credentials for a session
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by signup and login
type Session struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

// SignupResult is the onboarding bundle created with an account
type SignupResult struct {
	Profile *UserProfile
	Zones   []Zone
	Agents  []Agent
}
