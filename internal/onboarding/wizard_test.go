package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/qninhdt/c3/server/internal/models"
)

type fakeWriter struct {
	patch   *models.ProfilePatch
	key     *models.UpsertAPIKeyRequest
	failKey bool
}

func (f *fakeWriter) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	f.patch = &patch
	return &models.UserProfile{
		BaseName:            *patch.BaseName,
		OnboardingCompleted: *patch.OnboardingCompleted,
		OnboardingStep:      *patch.OnboardingStep,
	}, nil
}

func (f *fakeWriter) UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error) {
	if f.failKey {
		return nil, errors.New("offline")
	}
	f.key = &req
	return &models.APIKey{Provider: req.Provider}, nil
}

// TestNavigation tests stepping through the wizard in order
func TestNavigation(t *testing.T) {
	w := New()

	if w.Current() != StepWelcome {
		t.Errorf("Expected welcome, got %s", w.Current())
	}

	if w.Back() {
		t.Error("Expected Back to fail on the first step")
	}

	for i := 1; i < len(Steps); i++ {
		if !w.Next() {
			t.Fatalf("Expected Next to succeed at step %d", i)
		}
	}

	if w.Current() != StepTour {
		t.Errorf("Expected tour, got %s", w.Current())
	}

	if w.Next() {
		t.Error("Expected Next to fail on the last step")
	}

	if w.Progress() != 1 {
		t.Errorf("Expected progress 1, got %f", w.Progress())
	}

	w.Back()
	if w.Current() != StepFirstMission {
		t.Errorf("Expected firstmission, got %s", w.Current())
	}
}

// TestValidateKey tests the Anthropic key prefix check
func TestValidateKey(t *testing.T) {
	w := New()
	w.Next()
	w.Next()

	w.AnthropicKey = "sk-openai-123"
	err := w.ValidateKey()
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected invalid input, got %v", err)
	}

	if w.Current() != StepAPIKey {
		t.Errorf("Expected to stay on apikey, got %s", w.Current())
	}

	w.AnthropicKey = "  sk-ant-abc  "
	if err := w.ValidateKey(); err != nil {
		t.Fatalf("Expected valid key, got %v", err)
	}

	if w.Current() != StepFirstMission || !w.KeyValidated {
		t.Errorf("Expected validated and on firstmission, got %s", w.Current())
	}

	if w.AnthropicKey != "sk-ant-abc" {
		t.Errorf("Expected trimmed key, got %q", w.AnthropicKey)
	}
}

// TestComplete tests the profile patch and key upsert
func TestComplete(t *testing.T) {
	w := New()
	w.BaseName = "Forward Base"
	w.CommanderAvatar = models.AvatarEngineer
	w.AnthropicKey = "sk-ant-abc"
	if err := w.ValidateKey(); err != nil {
		t.Fatal(err)
	}

	fw := &fakeWriter{}
	profile, err := w.Complete(context.Background(), fw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !profile.OnboardingCompleted || profile.OnboardingStep != CompletedStep {
		t.Errorf("Expected onboarding completed at step 5, got %+v", profile)
	}

	if *fw.patch.CommanderAvatar != models.AvatarEngineer {
		t.Errorf("Expected engineer avatar, got %s", *fw.patch.CommanderAvatar)
	}

	if *fw.patch.PrimaryMissionType != models.MissionTypeMixed {
		t.Errorf("Expected mixed mission type, got %s", *fw.patch.PrimaryMissionType)
	}

	if fw.key == nil || fw.key.Provider != models.ProviderAnthropic || fw.key.Key != "sk-ant-abc" {
		t.Errorf("Expected anthropic key stored, got %+v", fw.key)
	}
}

// TestCompleteWithoutKey tests that a skipped key is not stored
func TestCompleteWithoutKey(t *testing.T) {
	w := New()
	w.AnthropicKey = "sk-ant-typed-then-skipped"
	w.SkipKey()

	fw := &fakeWriter{failKey: true}
	if _, err := w.Complete(context.Background(), fw); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if fw.key != nil {
		t.Errorf("Expected no key stored, got %+v", fw.key)
	}
}
