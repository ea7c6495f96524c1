// Package onboarding walks a new commander through base setup
package onboarding

import (
	"context"
	"fmt"
	"strings"

	"github.com/qninhdt/c3/server/internal/models"
)

// Step is one page of the wizard
type Step string

const (
	StepWelcome      Step = "welcome"
	StepProfile      Step = "profile"
	StepAPIKey       Step = "apikey"
	StepFirstMission Step = "firstmission"
	StepTour         Step = "tour"
)

// Steps is the wizard order
var Steps = []Step{StepWelcome, StepProfile, StepAPIKey, StepFirstMission, StepTour}

// CompletedStep is the onboarding step stored once the wizard is done
const CompletedStep = 5

// AnthropicKeyPrefix starts every Anthropic API key
const AnthropicKeyPrefix = "sk-ant-"

// ProfileWriter saves what the wizard collected
type ProfileWriter interface {
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error)
	UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error)
}

// Wizard holds the wizard position and form state
type Wizard struct {
	index int

	BaseName        string
	CommanderAvatar models.CommanderAvatar
	MissionType     models.MissionType
	AnthropicKey    string
	KeyValidated    bool
}

// New starts at the welcome step with the default form values
func New() *Wizard {
	return &Wizard{
		BaseName:        "Command Base",
		CommanderAvatar: models.AvatarGeneral,
		MissionType:     models.MissionTypeMixed,
	}
}

// Current returns the step being shown
func (w *Wizard) Current() Step { return Steps[w.index] }

// Next advances one step. It returns false on the last step.
func (w *Wizard) Next() bool {
	if w.index >= len(Steps)-1 {
		return false
	}
	w.index++
	return true
}

// Back returns one step. It returns false on the first step.
func (w *Wizard) Back() bool {
	if w.index == 0 {
		return false
	}
	w.index--
	return true
}

// Progress is the fraction of steps reached, current included
func (w *Wizard) Progress() float64 {
	return float64(w.index+1) / float64(len(Steps))
}

// ValidateKey checks the Anthropic key format and moves past the key step
func (w *Wizard) ValidateKey() error {
	key := strings.TrimSpace(w.AnthropicKey)
	if !strings.HasPrefix(key, AnthropicKeyPrefix) {
		return models.Invalid("key", "Invalid API key format. It should start with "+AnthropicKeyPrefix)
	}
	w.AnthropicKey = key
	w.KeyValidated = true
	if w.Current() == StepAPIKey {
		w.Next()
	}
	return nil
}

// SkipKey moves past the key step without a key
func (w *Wizard) SkipKey() {
	w.AnthropicKey = ""
	w.KeyValidated = false
	if w.Current() == StepAPIKey {
		w.Next()
	}
}

// Complete saves the profile as onboarded and stores the key when one was
// validated
func (w *Wizard) Complete(ctx context.Context, pw ProfileWriter) (*models.UserProfile, error) {
	done := true
	step := CompletedStep
	base := strings.TrimSpace(w.BaseName)
	avatar := w.CommanderAvatar
	missionType := w.MissionType

	profile, err := pw.UpdateProfile(ctx, models.ProfilePatch{
		BaseName:            &base,
		CommanderAvatar:     &avatar,
		PrimaryMissionType:  &missionType,
		OnboardingCompleted: &done,
		OnboardingStep:      &step,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}

	if w.KeyValidated && w.AnthropicKey != "" {
		_, err := pw.UpsertAPIKey(ctx, models.UpsertAPIKeyRequest{
			Provider: models.ProviderAnthropic,
			Key:      w.AnthropicKey,
		})
		if err != nil {
			return profile, fmt.Errorf("failed to store api key: %w", err)
		}
	}
	return profile, nil
}
