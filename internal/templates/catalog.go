package templates

import (
	"time"

	"github.com/qninhdt/c3/server/internal/models"
)

// Template is a blueprint for instantiating agents
type Template struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Class         models.AgentClass `json:"class"`
	Description   string            `json:"description"`
	BaseStats     models.AgentStats `json:"base_stats"`
	BaseSkills    []string          `json:"base_skills"`
	Icon          string            `json:"icon"`
	Color         string            `json:"color"`
	RequiredLevel int               `json:"required_level"`
	RequiredTier  models.UserTier   `json:"required_tier"`
}

// Starter template ids used to seed new accounts
const (
	StarterScout   = "scout-basic"
	StarterBuilder = "builder-basic"
	StarterCourier = "courier-basic"
)

var catalog = []Template{
	{
		ID: "scout-basic", Name: "Scout", Class: models.ClassScout,
		Description: "Fast reconnaissance agent for research and information gathering",
		BaseStats:   models.AgentStats{Speed: 8, Accuracy: 6, Stamina: 5, Versatility: 7},
		BaseSkills:  []string{"web_search", "document_analysis", "synthesis"},
		Icon:        "🔍", Color: "#10B981", RequiredLevel: 1, RequiredTier: models.TierFree,
	},
	{
		ID: "scout-research", Name: "Research Scout", Class: models.ClassScout,
		Description: "Specialized in deep research and academic analysis",
		BaseStats:   models.AgentStats{Speed: 6, Accuracy: 9, Stamina: 6, Versatility: 5},
		BaseSkills:  []string{"web_search", "document_analysis", "synthesis", "deep_dive"},
		Icon:        "📚", Color: "#059669", RequiredLevel: 5, RequiredTier: models.TierFree,
	},
	{
		ID: "scout-competitive", Name: "Intel Scout", Class: models.ClassScout,
		Description: "Expert at competitive analysis and market research",
		BaseStats:   models.AgentStats{Speed: 7, Accuracy: 8, Stamina: 5, Versatility: 6},
		BaseSkills:  []string{"web_search", "competitive_analysis", "synthesis"},
		Icon:        "🎯", Color: "#047857", RequiredLevel: 10, RequiredTier: models.TierPro,
	},
	{
		ID: "builder-basic", Name: "Builder", Class: models.ClassBuilder,
		Description: "General-purpose code generation and development",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 7, Stamina: 8, Versatility: 6},
		BaseSkills:  []string{"code_generation", "code_review", "file_operations"},
		Icon:        "🛠️", Color: "#8B5CF6", RequiredLevel: 1, RequiredTier: models.TierFree,
	},
	{
		ID: "builder-frontend", Name: "Frontend Builder", Class: models.ClassBuilder,
		Description: "Specialized in React, Vue, and modern frontend development",
		BaseStats:   models.AgentStats{Speed: 6, Accuracy: 8, Stamina: 7, Versatility: 5},
		BaseSkills:  []string{"code_generation", "code_review", "frontend_dev"},
		Icon:        "🎨", Color: "#7C3AED", RequiredLevel: 5, RequiredTier: models.TierFree,
	},
	{
		ID: "builder-backend", Name: "Backend Builder", Class: models.ClassBuilder,
		Description: "Expert in APIs, databases, and server-side logic",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 9, Stamina: 8, Versatility: 5},
		BaseSkills:  []string{"code_generation", "code_review", "backend_dev", "database_ops"},
		Icon:        "⚙️", Color: "#6D28D9", RequiredLevel: 5, RequiredTier: models.TierFree,
	},
	{
		ID: "builder-fullstack", Name: "Fullstack Builder", Class: models.ClassBuilder,
		Description: "Versatile developer handling both frontend and backend",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 7, Stamina: 8, Versatility: 9},
		BaseSkills:  []string{"code_generation", "code_review", "frontend_dev", "backend_dev"},
		Icon:        "🏗️", Color: "#5B21B6", RequiredLevel: 15, RequiredTier: models.TierPro,
	},
	{
		ID: "guardian-basic", Name: "Guardian", Class: models.ClassGuardian,
		Description: "Code quality and testing specialist",
		BaseStats:   models.AgentStats{Speed: 4, Accuracy: 9, Stamina: 7, Versatility: 4},
		BaseSkills:  []string{"code_review", "testing", "security_scan"},
		Icon:        "🛡️", Color: "#EF4444", RequiredLevel: 3, RequiredTier: models.TierFree,
	},
	{
		ID: "guardian-security", Name: "Security Guardian", Class: models.ClassGuardian,
		Description: "Focused on security audits and vulnerability detection",
		BaseStats:   models.AgentStats{Speed: 3, Accuracy: 10, Stamina: 6, Versatility: 3},
		BaseSkills:  []string{"code_review", "security_scan", "security_audit"},
		Icon:        "🔒", Color: "#DC2626", RequiredLevel: 10, RequiredTier: models.TierPro,
	},
	{
		ID: "guardian-qa", Name: "QA Guardian", Class: models.ClassGuardian,
		Description: "Testing expert with comprehensive QA capabilities",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 9, Stamina: 8, Versatility: 5},
		BaseSkills:  []string{"testing", "code_review", "test_generation"},
		Icon:        "✅", Color: "#B91C1C", RequiredLevel: 8, RequiredTier: models.TierFree,
	},
	{
		ID: "courier-basic", Name: "Courier", Class: models.ClassCourier,
		Description: "Communication and notification specialist",
		BaseStats:   models.AgentStats{Speed: 9, Accuracy: 5, Stamina: 6, Versatility: 7},
		BaseSkills:  []string{"send_notification", "email_compose"},
		Icon:        "📨", Color: "#F59E0B", RequiredLevel: 2, RequiredTier: models.TierFree,
	},
	{
		ID: "courier-social", Name: "Social Courier", Class: models.ClassCourier,
		Description: "Expert in social media and public communications",
		BaseStats:   models.AgentStats{Speed: 8, Accuracy: 6, Stamina: 7, Versatility: 8},
		BaseSkills:  []string{"social_posting", "email_compose", "content_writing"},
		Icon:        "📱", Color: "#D97706", RequiredLevel: 7, RequiredTier: models.TierPro,
	},
	{
		ID: "courier-docs", Name: "Documentation Courier", Class: models.ClassCourier,
		Description: "Specialized in documentation and technical writing",
		BaseStats:   models.AgentStats{Speed: 6, Accuracy: 8, Stamina: 7, Versatility: 6},
		BaseSkills:  []string{"content_writing", "doc_generation", "notion_ops"},
		Icon:        "📝", Color: "#B45309", RequiredLevel: 5, RequiredTier: models.TierFree,
	},
	{
		ID: "analyst-basic", Name: "Analyst", Class: models.ClassAnalyst,
		Description: "Data processing and analysis specialist",
		BaseStats:   models.AgentStats{Speed: 4, Accuracy: 8, Stamina: 7, Versatility: 6},
		BaseSkills:  []string{"data_analysis", "spreadsheet_ops", "synthesis"},
		Icon:        "📊", Color: "#00D4FF", RequiredLevel: 3, RequiredTier: models.TierFree,
	},
	{
		ID: "analyst-data", Name: "Data Analyst", Class: models.ClassAnalyst,
		Description: "Advanced data processing and visualization",
		BaseStats:   models.AgentStats{Speed: 4, Accuracy: 9, Stamina: 8, Versatility: 5},
		BaseSkills:  []string{"data_analysis", "etl", "database_ops", "visualization"},
		Icon:        "📈", Color: "#0EA5E9", RequiredLevel: 8, RequiredTier: models.TierPro,
	},
	{
		ID: "analyst-bi", Name: "BI Analyst", Class: models.ClassAnalyst,
		Description: "Business intelligence and reporting expert",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 8, Stamina: 7, Versatility: 7},
		BaseSkills:  []string{"data_analysis", "synthesis", "spreadsheet_ops", "report_generation"},
		Icon:        "🎯", Color: "#0284C7", RequiredLevel: 12, RequiredTier: models.TierPro,
	},
	{
		ID: "commander-basic", Name: "Commander", Class: models.ClassCommander,
		Description: "Agent coordination and mission orchestration",
		BaseStats:   models.AgentStats{Speed: 5, Accuracy: 7, Stamina: 6, Versatility: 9},
		BaseSkills:  []string{"agent_coordination", "task_delegation"},
		Icon:        "⭐", Color: "#FFD700", RequiredLevel: 15, RequiredTier: models.TierPro,
	},
	{
		ID: "commander-elite", Name: "Elite Commander", Class: models.ClassCommander,
		Description: "Master strategist with advanced orchestration capabilities",
		BaseStats:   models.AgentStats{Speed: 6, Accuracy: 8, Stamina: 7, Versatility: 10},
		BaseSkills:  []string{"agent_coordination", "task_delegation", "mission_optimization"},
		Icon:        "👑", Color: "#FCD34D", RequiredLevel: 25, RequiredTier: models.TierEnterprise,
	},
}

// All returns a copy of every template
func All() []Template {
	out := make([]Template, len(catalog))
	for i, t := range catalog {
		out[i] = t.clone()
	}
	return out
}

// ByID looks up a template
func ByID(id string) (Template, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return Template{}, false
}

// ByClass returns templates of one class
func ByClass(class models.AgentClass) []Template {
	var out []Template
	for _, t := range catalog {
		if t.Class == class {
			out = append(out, t.clone())
		}
	}
	return out
}

// Available returns templates unlocked at the given level and tier. An
// unknown tier unlocks nothing.
func Available(level int, tier models.UserTier) []Template {
	out := make([]Template, 0)
	for _, t := range catalog {
		if t.Unlocked(level, tier) {
			out = append(out, t.clone())
		}
	}
	return out
}

// Unlocked reports whether t is selectable at the given level and tier
func (t Template) Unlocked(level int, tier models.UserTier) bool {
	return t.RequiredLevel <= level && tier.AtLeast(t.RequiredTier)
}

// Instantiate builds an agent from the template. The name defaults to the
// template name and the position to the origin.
func (t Template) Instantiate(userID, name string, pos *models.Position3D, now time.Time) models.Agent {
	if name == "" {
		name = t.Name
	}
	var p models.Position3D
	if pos != nil {
		p = *pos
	}
	return models.Agent{
		UserID:       userID,
		TemplateID:   t.ID,
		Name:         name,
		Class:        t.Class,
		Status:       models.AgentIdle,
		Position:     p,
		Level:        1,
		Stats:        t.BaseStats,
		Skills:       append([]string(nil), t.BaseSkills...),
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}
}

func (t Template) clone() Template {
	t.BaseSkills = append([]string(nil), t.BaseSkills...)
	return t
}
