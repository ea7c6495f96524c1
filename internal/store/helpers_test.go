package store

import "github.com/qninhdt/c3/server/internal/models"

type fakeSelection struct {
	ids     []string
	removed []string
}

func (f *fakeSelection) Selected() []string { return append([]string(nil), f.ids...) }

func (f *fakeSelection) Remove(id string) {
	f.removed = append(f.removed, id)
	out := f.ids[:0]
	for _, s := range f.ids {
		if s != id {
			out = append(out, s)
		}
	}
	f.ids = out
}

func testAgent(id string, status models.AgentStatus) models.Agent {
	return models.Agent{
		ID:     id,
		Name:   "Agent " + id,
		Class:  models.ClassScout,
		Status: status,
		Skills: []string{"web_search"},
		Level:  1,
	}
}

func testMission(id string, status models.MissionStatus, agents ...string) models.Mission {
	return models.Mission{
		ID:             id,
		Title:          "Mission " + id,
		Status:         status,
		Blueprint:      models.Blueprint{Prompt: "do it"},
		AssignedAgents: agents,
	}
}
