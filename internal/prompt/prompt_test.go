package prompt

import (
	"strings"
	"testing"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

func fullDef() *models.AgentDefinition {
	return &models.AgentDefinition{
		ID:            "pm",
		Name:          "John",
		Title:         "Product Manager",
		Icon:          "📋",
		Customization: "Always ask about target users first.",
		Persona: &models.Persona{
			Role:           "Product Strategist",
			Style:          "Analytical",
			Identity:       "PM focused on document quality",
			Focus:          "Complete PRDs",
			CorePrinciples: []string{"Understand before solving"},
		},
		Commands:               []string{"create-prd", "shard-prd"},
		ActivationInstructions: []string{"Greet the user", "List commands"},
	}
}

func sampleTools() []ToolDoc {
	return []ToolDoc{
		{
			Name:        "read_file",
			Description: "Read a file from the workspace.",
			Parameters:  `{"file_path": "absolute path"}`,
			Example:     `read_file({"file_path": "/docs/prd.md"})`,
		},
	}
}

func TestComposeSectionOrder(t *testing.T) {
	out := Compose(fullDef(), sampleTools())

	sections := []string{
		"## Available Tools",
		"### read_file",
		"## Tool Usage Rules",
		"## Workflow Guidelines",
		"## Agent Persona",
		"Always ask about target users first.",
		"## Available Commands",
		"## Activation Instructions",
	}
	last := -1
	for _, section := range sections {
		idx := strings.Index(out, section)
		if idx < 0 {
			t.Fatalf("prompt missing section %q", section)
		}
		if idx < last {
			t.Errorf("section %q out of order", section)
		}
		last = idx
	}
}

func TestComposePersonaFields(t *testing.T) {
	out := Compose(fullDef(), nil)

	for _, want := range []string{
		"**Name:** John",
		"**Role:** Product Strategist",
		"**Title:** Product Manager",
		"**Icon:** 📋",
		"**Style:** Analytical",
		"**Core Principles:**",
		"- Understand before solving",
		"- create-prd",
		"1. Greet the user",
		"2. List commands",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestComposeMinimalDefinition(t *testing.T) {
	def := &models.AgentDefinition{ID: "dev", Name: "Dev"}
	out := Compose(def, nil)

	if !strings.Contains(out, "**Name:** Dev") {
		t.Error("prompt missing name")
	}
	if strings.Contains(out, "## Available Commands") {
		t.Error("commands section should be omitted when empty")
	}
	if !strings.Contains(out, "Follow the persona and commands described above.") {
		t.Error("missing activation fallback line")
	}
	if !strings.Contains(out, "Adopt the persona") {
		t.Error("missing closing directive")
	}
}
