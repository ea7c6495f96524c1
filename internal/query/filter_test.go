package query

import (
	"errors"
	"testing"

	"github.com/qninhdt/c3/server/internal/models"
)

func testAgents() []models.Agent {
	return []models.Agent{
		{ID: "a1", Status: models.AgentIdle, Class: models.ClassScout, Level: 1, Skills: []string{"web_search"}},
		{ID: "a2", Status: models.AgentDeploying, Class: models.ClassBuilder, Level: 4, Skills: []string{"code_review"}, CurrentMissionID: "m1"},
		{ID: "a3", Status: models.AgentIdle, Class: models.ClassBuilder, Level: 6, Skills: []string{"code_review", "testing"}},
	}
}

// TestIdleFilter tests the built-in idle filter
func TestIdleFilter(t *testing.T) {
	got, err := Idle.Apply(testAgents())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a3" {
		t.Errorf("Expected a1 and a3, got %+v", got)
	}
}

// TestCompoundFilter tests skills membership and numeric comparison
func TestCompoundFilter(t *testing.T) {
	f, err := Compile(`"code_review" in skills && level >= 5`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	got, err := f.Apply(testAgents())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a3" {
		t.Errorf("Expected only a3, got %+v", got)
	}
}

// TestCompileRejects tests that bad expressions are input errors
func TestCompileRejects(t *testing.T) {
	for _, src := range []string{"", "level +", "unknown_field == 1", "level + 1"} {
		if _, err := Compile(src); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Compile(%q): expected invalid input, got %v", src, err)
		}
	}
}
