package agentdef

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// AgentNotFoundError reports an agent id that matched no file in any
// configured search location.
type AgentNotFoundError struct {
	ID       string
	Searched []string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found (searched %s)", e.ID, strings.Join(e.Searched, ", "))
}

// DiscoveredFile is one agent markdown file mapped to the VFS path a
// session seeds it at.
type DiscoveredFile struct {
	VFSPath string
	Content string
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// BaseDir is the project root holding ./.bmad-core. Defaults to ".".
	BaseDir string

	// FallbackDir holds the bundled agent set consulted when BaseDir has
	// no match. Defaults to "../bmad-export-author".
	FallbackDir string

	// ExpansionPackPaths are scanned for .bmad-* pack directories.
	ExpansionPackPaths []string

	Logger *slog.Logger
}

// Loader resolves agent definitions from disk with a fixed precedence:
// local .bmad-core, then the bundled fallback, then expansion packs.
// Parsed definitions are cached for the loader's lifetime.
type Loader struct {
	baseDir     string
	fallbackDir string
	packPaths   []string
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]*models.AgentDefinition
}

// NewLoader creates a loader from options.
func NewLoader(opts LoaderOptions) *Loader {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "."
	}
	fallbackDir := opts.FallbackDir
	if fallbackDir == "" {
		fallbackDir = filepath.Join("..", "bmad-export-author")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		baseDir:     baseDir,
		fallbackDir: fallbackDir,
		packPaths:   opts.ExpansionPackPaths,
		logger:      logger,
		cache:       make(map[string]*models.AgentDefinition),
	}
}

// Load resolves id to a parsed definition. Resolution order: the local
// .bmad-core/agents directory, the bundled fallback, then each expansion
// pack path scanned for .bmad-*/agents. First match wins; exhaustion yields
// an *AgentNotFoundError.
func (l *Loader) Load(id string) (*models.AgentDefinition, error) {
	l.mu.Lock()
	if def, ok := l.cache[id]; ok {
		l.mu.Unlock()
		return def, nil
	}
	l.mu.Unlock()

	var searched []string
	candidates := []string{
		filepath.Join(l.baseDir, ".bmad-core", "agents", id+".md"),
		filepath.Join(l.fallbackDir, ".bmad-core", "agents", id+".md"),
	}
	for _, packPath := range l.packPaths {
		candidates = append(candidates, l.packCandidates(packPath, id)...)
	}

	for _, path := range candidates {
		searched = append(searched, path)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		def, err := Parse(data, path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("agent definition loaded", "agent_id", id, "path", path)

		l.mu.Lock()
		l.cache[id] = def
		l.mu.Unlock()
		return def, nil
	}

	return nil, &AgentNotFoundError{ID: id, Searched: searched}
}

func (l *Loader) packCandidates(packPath, id string) []string {
	entries, err := os.ReadDir(packPath)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ".bmad-") {
			continue
		}
		out = append(out, filepath.Join(packPath, entry.Name(), "agents", id+".md"))
	}
	return out
}

// DiscoverFiles collects every agent markdown file for VFS seeding, in
// overwrite order: bundled fallback first, then expansion packs, then the
// local .bmad-core so local entries win at identical VFS paths. The caller
// writes them to the VFS in slice order.
func (l *Loader) DiscoverFiles() []DiscoveredFile {
	var files []DiscoveredFile

	files = append(files, readAgentsDir(filepath.Join(l.fallbackDir, ".bmad-core", "agents"), "/.bmad-core/agents")...)

	for _, packPath := range l.packPaths {
		entries, err := os.ReadDir(packPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ".bmad-") {
				continue
			}
			files = append(files, readAgentsDir(
				filepath.Join(packPath, entry.Name(), "agents"),
				"/"+entry.Name()+"/agents")...)
		}
	}

	files = append(files, readAgentsDir(filepath.Join(l.baseDir, ".bmad-core", "agents"), "/.bmad-core/agents")...)
	return files
}

func readAgentsDir(dir, vfsPrefix string) []DiscoveredFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var out []DiscoveredFile
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		out = append(out, DiscoveredFile{
			VFSPath: vfsPrefix + "/" + name,
			Content: string(data),
		})
	}
	return out
}
