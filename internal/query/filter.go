package query

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/qninhdt/c3/server/internal/models"
)

// MaxLength bounds filter source accepted from clients
const MaxLength = 256

// agentEnv is the set of names a filter may reference
type agentEnv struct {
	ID                string   `expr:"id"`
	Name              string   `expr:"name"`
	Class             string   `expr:"class"`
	Status            string   `expr:"status"`
	Mission           string   `expr:"mission"`
	Level             int      `expr:"level"`
	Experience        int      `expr:"experience"`
	Speed             int      `expr:"speed"`
	Accuracy          int      `expr:"accuracy"`
	Stamina           int      `expr:"stamina"`
	Versatility       int      `expr:"versatility"`
	Skills            []string `expr:"skills"`
	MissionsCompleted int      `expr:"missions_completed"`
	SuccessRate       float64  `expr:"success_rate"`
	ControlGroup      int      `expr:"group"`
}

func envFor(a *models.Agent) agentEnv {
	return agentEnv{
		ID:                a.ID,
		Name:              a.Name,
		Class:             string(a.Class),
		Status:            string(a.Status),
		Mission:           a.CurrentMissionID,
		Level:             a.Level,
		Experience:        a.Experience,
		Speed:             a.Stats.Speed,
		Accuracy:          a.Stats.Accuracy,
		Stamina:           a.Stats.Stamina,
		Versatility:       a.Stats.Versatility,
		Skills:            a.Skills,
		MissionsCompleted: a.MissionsCompleted,
		SuccessRate:       a.SuccessRate,
		ControlGroup:      a.ControlGroup,
	}
}

// AgentFilter is a compiled boolean expression over agent fields,
// e.g. `status == "idle" && "code_review" in skills`
type AgentFilter struct {
	source  string
	program *vm.Program
}

// Idle selects every idle agent
var Idle = MustCompile(`status == "idle"`)

// Compile type-checks the expression against the agent environment
func Compile(source string) (*AgentFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, models.Invalid("filter", "expression is empty")
	}
	if len(source) > MaxLength {
		return nil, models.Invalid("filter", fmt.Sprintf("expression longer than %d characters", MaxLength))
	}
	program, err := expr.Compile(source, expr.Env(agentEnv{}), expr.AsBool())
	if err != nil {
		return nil, models.Invalid("filter", err.Error())
	}
	return &AgentFilter{source: source, program: program}, nil
}

// MustCompile is Compile for expressions known at build time
func MustCompile(source string) *AgentFilter {
	f, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the expression source
func (f *AgentFilter) String() string { return f.source }

// Match evaluates the filter for one agent
func (f *AgentFilter) Match(a *models.Agent) (bool, error) {
	out, err := expr.Run(f.program, envFor(a))
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the agents matching the filter, keeping order
func (f *AgentFilter) Apply(agents []models.Agent) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(agents))
	for i := range agents {
		ok, err := f.Match(&agents[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, agents[i])
		}
	}
	return out, nil
}
