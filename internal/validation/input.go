// Package validation checks request input before it reaches storage.
// Failures are models.InputError values naming the offending field.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/qninhdt/c3/server/internal/models"
)

var (
	idPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Limits on free text
const (
	MaxTitleLength  = 200
	MaxPromptLength = 20000
	MaxNameLength   = 100
	MinPassword     = 8
	MaxPassword     = 72 // bcrypt input limit
	MaxAPIKeyLength = 512
)

// ValidateID validates an entity id
func ValidateID(field, id string) error {
	if len(id) == 0 || len(id) > 64 {
		return models.Invalid(field, "must be 1-64 characters")
	}
	if !idPattern.MatchString(id) {
		return models.Invalid(field, "can only contain alphanumeric characters, hyphens, and underscores")
	}
	return nil
}

// ValidateIDs validates each id in a list
func ValidateIDs(field string, ids []string) error {
	for _, id := range ids {
		if err := ValidateID(field, id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return models.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return models.Invalid("email", "is not a valid address")
	}
	return nil
}

// ValidatePassword validates a new password
func ValidatePassword(password string) error {
	if len(password) < MinPassword {
		return models.Invalid("password", "must be at least 8 characters")
	}
	if len(password) > MaxPassword {
		return models.Invalid("password", "must be at most 72 bytes")
	}
	return nil
}

// ValidateText checks a required or optional bounded string
func ValidateText(field, value string, required bool, max int) error {
	if required && strings.TrimSpace(value) == "" {
		return models.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(value) > max {
		return models.Invalid(field, "is too long")
	}
	return nil
}

// ValidateColor validates a #rrggbb color
func ValidateColor(color string) error {
	if color != "" && !colorPattern.MatchString(color) {
		return models.Invalid("color", "must be #rrggbb")
	}
	return nil
}

// ValidateCreateMission validates a mission create request
func ValidateCreateMission(req *models.CreateMissionRequest) error {
	if err := ValidateText("title", req.Title, true, MaxTitleLength); err != nil {
		return err
	}
	if err := ValidateText("blueprint.prompt", req.Blueprint.Prompt, true, MaxPromptLength); err != nil {
		return err
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return models.Invalid("priority", "is not a known priority")
	}
	if err := ValidateIDs("agent_ids", req.AgentIDs); err != nil {
		return err
	}
	if req.ZoneID != "" {
		return ValidateID("zone_id", req.ZoneID)
	}
	return nil
}

// ValidateCreateZone validates a zone create request
func ValidateCreateZone(req *models.CreateZoneRequest) error {
	if err := ValidateText("name", req.Name, true, MaxNameLength); err != nil {
		return err
	}
	if !req.Type.Valid() {
		return models.Invalid("type", "is not a known zone type")
	}
	if req.MaxCapacity < 0 {
		return models.Invalid("max_capacity", "must not be negative")
	}
	return ValidateColor(req.Color)
}

// ValidateProfilePatch validates a profile update
func ValidateProfilePatch(p *models.ProfilePatch) error {
	if p.DisplayName != nil {
		if err := ValidateText("display_name", *p.DisplayName, false, MaxNameLength); err != nil {
			return err
		}
	}
	if p.BaseName != nil {
		if err := ValidateText("base_name", *p.BaseName, true, MaxNameLength); err != nil {
			return err
		}
	}
	if p.CommanderAvatar != nil && !p.CommanderAvatar.Valid() {
		return models.Invalid("commander_avatar", "is not a known avatar")
	}
	if p.PrimaryMissionType != nil && !p.PrimaryMissionType.Valid() {
		return models.Invalid("primary_mission_type", "is not a known mission type")
	}
	if p.OnboardingStep != nil && (*p.OnboardingStep < 0 || *p.OnboardingStep > 5) {
		return models.Invalid("onboarding_step", "must be between 0 and 5")
	}
	return nil
}

// ValidateAPIKey validates an API key upsert
func ValidateAPIKey(req *models.UpsertAPIKeyRequest) error {
	if !req.Provider.Valid() {
		return models.Invalid("provider", "is not a known provider")
	}
	if strings.TrimSpace(req.Key) == "" {
		return models.Invalid("key", "is required")
	}
	if len(req.Key) > MaxAPIKeyLength {
		return models.Invalid("key", "is too long")
	}
	return nil
}
