// Package agentdef parses agent role descriptors (markdown with YAML
// front-matter) and resolves them from the configured search paths.
package agentdef

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Parse errors.
var (
	ErrNoFrontMatter = errors.New("missing YAML front-matter")
	ErrMissingID     = errors.New("front-matter missing agent.id")
	ErrMissingName   = errors.New("front-matter missing agent.name")
)

// ParseError wraps a parse failure with the source path when known.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse agent definition %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse agent definition: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// frontMatter mirrors the YAML layout of an agent descriptor. The markdown
// body after the closing delimiter is informational and ignored.
type frontMatter struct {
	Agent struct {
		Name          string `yaml:"name"`
		ID            string `yaml:"id"`
		Title         string `yaml:"title"`
		Icon          string `yaml:"icon"`
		WhenToUse     string `yaml:"whenToUse"`
		Customization string `yaml:"customization"`
	} `yaml:"agent"`
	Persona                *models.Persona      `yaml:"persona"`
	Commands               []string             `yaml:"commands"`
	Dependencies           *models.Dependencies `yaml:"dependencies"`
	ActivationInstructions []string             `yaml:"activation-instructions"`
}

// Parse extracts the YAML front-matter from source and builds the
// definition. sourcePath is used for error reporting only.
func Parse(source []byte, sourcePath string) (*models.AgentDefinition, error) {
	raw, err := extractFrontMatter(string(source))
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Err: err}
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, &ParseError{Path: sourcePath, Err: err}
	}
	if fm.Agent.ID == "" {
		return nil, &ParseError{Path: sourcePath, Err: ErrMissingID}
	}
	if fm.Agent.Name == "" {
		return nil, &ParseError{Path: sourcePath, Err: ErrMissingName}
	}

	return &models.AgentDefinition{
		ID:                     fm.Agent.ID,
		Name:                   fm.Agent.Name,
		Title:                  fm.Agent.Title,
		Icon:                   fm.Agent.Icon,
		WhenToUse:              fm.Agent.WhenToUse,
		Customization:          fm.Agent.Customization,
		Persona:                fm.Persona,
		Commands:               fm.Commands,
		Dependencies:           fm.Dependencies,
		ActivationInstructions: fm.ActivationInstructions,
	}, nil
}

// extractFrontMatter returns the YAML between the leading "---" fence and
// its closing fence. The fence must open the document; leading blank lines
// are tolerated.
func extractFrontMatter(source string) (string, error) {
	trimmed := strings.TrimLeft(source, "\r\n \t")
	if !strings.HasPrefix(trimmed, "---") {
		return "", ErrNoFrontMatter
	}

	rest := trimmed[len("---"):]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return "", ErrNoFrontMatter
	}

	for _, fence := range []string{"\n---\n", "\n---\r\n"} {
		if idx := strings.Index(rest, fence); idx >= 0 {
			return rest[:idx], nil
		}
	}
	if strings.HasSuffix(rest, "\n---") {
		return rest[:len(rest)-len("\n---")], nil
	}
	return "", ErrNoFrontMatter
}
