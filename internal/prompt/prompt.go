// Package prompt assembles the system prompt from an agent definition and
// the tool catalog. The section order and vocabulary are a stable contract
// with the LLM; changing them changes model behavior.
package prompt

import (
	"fmt"
	"strings"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// ToolDoc documents one tool for the Available Tools section.
type ToolDoc struct {
	Name        string
	Description string
	Parameters  string
	Example     string
}

const preamble = `You are a specialized AI assistant operating inside an agent orchestration runtime. You have access to a set of specialized tools for reading, writing, and editing files in a virtual workspace, asking the user questions, and delegating work to other agents. Use them to complete the commands you are given.`

const toolUsageRules = `## Tool Usage Rules

1. Always call read_file on a file before calling edit_file on it.
2. All file paths must be absolute (starting with /).
3. Never write files speculatively; only write content you were asked to produce.
4. When a tool returns an error, read the error message and correct your call.`

const workflowGuidelines = `## Workflow Guidelines

1. Understand the command and what artifact it should produce.
2. Gather context: read existing files, ask the user when requirements are unclear.
3. Act: produce or modify the artifact with the file tools.
4. Report: summarize what was produced and where it lives.`

const closingDirective = `Adopt the persona described above and await commands. Stay in character for the entire session.`

// Compose builds the system prompt in the fixed section order: preamble,
// tools, usage rules, workflow, persona, customization, commands,
// activation instructions, closing directive.
func Compose(def *models.AgentDefinition, tools []ToolDoc) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\n")

	b.WriteString("## Available Tools\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "\n### %s\n\n%s\n\nParameters: %s\n\nExample:\n%s\n",
			tool.Name, tool.Description, tool.Parameters, tool.Example)
	}
	b.WriteString("\n")

	b.WriteString(toolUsageRules)
	b.WriteString("\n\n")
	b.WriteString(workflowGuidelines)
	b.WriteString("\n\n")

	b.WriteString("## Agent Persona\n\n")
	fmt.Fprintf(&b, "**Name:** %s\n", def.Name)
	if def.Persona != nil && def.Persona.Role != "" {
		fmt.Fprintf(&b, "**Role:** %s\n", def.Persona.Role)
	}
	if def.Title != "" {
		fmt.Fprintf(&b, "**Title:** %s\n", def.Title)
	}
	if def.Icon != "" {
		fmt.Fprintf(&b, "**Icon:** %s\n", def.Icon)
	}
	if def.Persona != nil {
		if def.Persona.Style != "" {
			fmt.Fprintf(&b, "**Style:** %s\n", def.Persona.Style)
		}
		if def.Persona.Identity != "" {
			fmt.Fprintf(&b, "**Identity:** %s\n", def.Persona.Identity)
		}
		if def.Persona.Focus != "" {
			fmt.Fprintf(&b, "**Focus:** %s\n", def.Persona.Focus)
		}
		if len(def.Persona.CorePrinciples) > 0 {
			b.WriteString("**Core Principles:**\n")
			for _, p := range def.Persona.CorePrinciples {
				fmt.Fprintf(&b, "- %s\n", p)
			}
		}
	}
	b.WriteString("\n")

	if def.Customization != "" {
		b.WriteString(def.Customization)
		b.WriteString("\n\n")
	}

	if len(def.Commands) > 0 {
		b.WriteString("## Available Commands\n\n")
		for _, cmd := range def.Commands {
			fmt.Fprintf(&b, "- %s\n", cmd)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Activation Instructions\n\n")
	if len(def.ActivationInstructions) > 0 {
		for i, instr := range def.ActivationInstructions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, instr)
		}
	} else {
		b.WriteString("Follow the persona and commands described above.\n")
	}
	b.WriteString("\n")

	b.WriteString(closingDirective)
	return b.String()
}
