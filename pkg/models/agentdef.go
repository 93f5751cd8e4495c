package models

// Persona describes how an agent presents itself in the system prompt.
type Persona struct {
	Role           string   `yaml:"role" json:"role,omitempty"`
	Style          string   `yaml:"style" json:"style,omitempty"`
	Identity       string   `yaml:"identity" json:"identity,omitempty"`
	Focus          string   `yaml:"focus" json:"focus,omitempty"`
	CorePrinciples []string `yaml:"core_principles" json:"core_principles,omitempty"`
}

// Dependencies lists resources an agent's commands may draw on.
type Dependencies struct {
	Tasks      []string `yaml:"tasks" json:"tasks,omitempty"`
	Templates  []string `yaml:"templates" json:"templates,omitempty"`
	Checklists []string `yaml:"checklists" json:"checklists,omitempty"`
	Data       []string `yaml:"data" json:"data,omitempty"`
}

// AgentDefinition is a parsed role descriptor. Definitions are produced by
// the agentdef parser from markdown files with YAML front-matter and are
// immutable once loaded.
type AgentDefinition struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name"`
	Title                  string        `json:"title,omitempty"`
	Icon                   string        `json:"icon,omitempty"`
	WhenToUse              string        `json:"when_to_use,omitempty"`
	Customization          string        `json:"customization,omitempty"`
	Persona                *Persona      `json:"persona,omitempty"`
	Commands               []string      `json:"commands,omitempty"`
	Dependencies           *Dependencies `json:"dependencies,omitempty"`
	ActivationInstructions []string      `json:"activation_instructions,omitempty"`
}
