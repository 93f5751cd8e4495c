// Package vfs implements the in-memory virtual filesystem that agent
// sessions manipulate through tools.
//
// The filesystem is a single mapping from absolute POSIX paths to files.
// There is no directory tree type: directories are inferred from path
// prefixes, and directory creation happens implicitly through writes. A
// mkdir affordance stores a ".directory" sentinel file at the nominal path;
// sentinels are excluded from glob results.
package vfs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Sentinel errors for filesystem operations.
var (
	// ErrFileNotFound indicates the requested path has no entry.
	ErrFileNotFound = errors.New("file not found")

	// ErrStringNotFound indicates an edit's old string does not occur in
	// the file.
	ErrStringNotFound = errors.New("string not found in file")

	// ErrInvalidPath indicates a path that is not absolute.
	ErrInvalidPath = errors.New("path must be absolute")
)

// PathError wraps a filesystem error with the offending path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("vfs %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// AmbiguousEditError indicates an edit whose old string occurs more than
// once, so a unique replacement cannot be made.
type AmbiguousEditError struct {
	Path        string
	Occurrences int
}

func (e *AmbiguousEditError) Error() string {
	return fmt.Sprintf("vfs edit %s: old string occurs %d times, must be unique", e.Path, e.Occurrences)
}

// DirectorySentinel is the basename of the marker file stored by Mkdir.
const DirectorySentinel = ".directory"

// FS is an in-memory path→file mapping. Each session owns its FS
// exclusively; the lock exists for the host-side accessors (Snapshot,
// Documents) that may run concurrently with tool dispatch.
type FS struct {
	mu    sync.RWMutex
	files map[string]*models.VirtualFile
}

// New creates an empty filesystem.
func New() *FS {
	return &FS{files: make(map[string]*models.VirtualFile)}
}

func validatePath(op, path string) error {
	if !strings.HasPrefix(path, "/") {
		return &PathError{Op: op, Path: path, Err: ErrInvalidPath}
	}
	return nil
}

// Write stores content at path, replacing any prior entry. The creation
// time of a pre-existing entry is preserved.
func (f *FS) Write(path, content string) error {
	if err := validatePath("write", path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	created := now
	if existing, ok := f.files[path]; ok {
		created = existing.CreatedAt
	}
	f.files[path] = &models.VirtualFile{
		Content:    content,
		CreatedAt:  created,
		ModifiedAt: now,
		SizeBytes:  len(content),
	}
	return nil
}

// Read returns the content stored at path.
func (f *FS) Read(path string) (string, error) {
	if err := validatePath("read", path); err != nil {
		return "", err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, ok := f.files[path]
	if !ok {
		return "", &PathError{Op: "read", Path: path, Err: ErrFileNotFound}
	}
	return file.Content, nil
}

// Stat returns a copy of the file metadata at path.
func (f *FS) Stat(path string) (models.VirtualFile, error) {
	if err := validatePath("stat", path); err != nil {
		return models.VirtualFile{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, ok := f.files[path]
	if !ok {
		return models.VirtualFile{}, &PathError{Op: "stat", Path: path, Err: ErrFileNotFound}
	}
	return *file, nil
}

// Edit replaces oldString with newString in the file at path. The old
// string must occur exactly once; uniqueness rather than occurrence index
// keeps LLM-generated patches deterministic.
func (f *FS) Edit(path, oldString, newString string) error {
	if err := validatePath("edit", path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[path]
	if !ok {
		return &PathError{Op: "edit", Path: path, Err: ErrFileNotFound}
	}
	count := strings.Count(file.Content, oldString)
	switch {
	case count == 0:
		return &PathError{Op: "edit", Path: path, Err: ErrStringNotFound}
	case count > 1:
		return &AmbiguousEditError{Path: path, Occurrences: count}
	}

	content := strings.Replace(file.Content, oldString, newString, 1)
	file.Content = content
	file.ModifiedAt = time.Now()
	file.SizeBytes = len(content)
	return nil
}

// Entry describes one direct child returned by List.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int
}

// List returns the direct children of dirPath, directories first then
// files, each group sorted by name. An empty result is not an error.
func (f *FS) List(dirPath string) ([]Entry, error) {
	if err := validatePath("list", dirPath); err != nil {
		return nil, err
	}
	prefix := dirPath
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	dirs := make(map[string]bool)
	var files []Entry
	for path, file := range f.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dirs[rest[:idx]] = true
			continue
		}
		if rest == DirectorySentinel {
			continue
		}
		files = append(files, Entry{
			Name: rest,
			Path: prefix + rest,
			Size: file.SizeBytes,
		})
	}

	entries := make([]Entry, 0, len(dirs)+len(files))
	for name := range dirs {
		entries = append(entries, Entry{
			Name:  name,
			Path:  prefix + name,
			IsDir: true,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(entries, files...), nil
}

// Mkdir records a directory marker at path. No other operation requires it;
// directories otherwise exist implicitly through the files beneath them.
func (f *FS) Mkdir(path string) error {
	if err := validatePath("mkdir", path); err != nil {
		return err
	}
	sentinel := strings.TrimSuffix(path, "/") + "/" + DirectorySentinel
	return f.Write(sentinel, "")
}

// Glob returns the paths matching pattern, sorted lexicographically.
// Relative patterns are resolved against basePath (default "/"). Directory
// sentinel entries are excluded.
func (f *FS) Glob(pattern, basePath string) ([]string, error) {
	if basePath == "" {
		basePath = "/"
	}
	if err := validatePath("glob", basePath); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = strings.TrimSuffix(basePath, "/") + "/" + pattern
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var matches []string
	for path := range f.files {
		if strings.HasSuffix(path, "/"+DirectorySentinel) {
			continue
		}
		ok, err := matchGlob(pattern, path)
		if err != nil {
			return nil, &PathError{Op: "glob", Path: pattern, Err: err}
		}
		if ok {
			matches = append(matches, path)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// Delete removes the entry at path. Missing entries are not an error.
func (f *FS) Delete(path string) error {
	if err := validatePath("delete", path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

// Len returns the number of entries.
func (f *FS) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.files)
}

// Snapshot returns every path and its content. Used for serialization.
func (f *FS) Snapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string, len(f.files))
	for path, file := range f.files {
		out[path] = file.Content
	}
	return out
}

// Restore replaces the filesystem contents from a snapshot.
func (f *FS) Restore(files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	f.files = make(map[string]*models.VirtualFile, len(files))
	for path, content := range files {
		f.files[path] = &models.VirtualFile{
			Content:    content,
			CreatedAt:  now,
			ModifiedAt: now,
			SizeBytes:  len(content),
		}
	}
}

// Documents returns the filesystem contents as documents, sorted by path,
// excluding paths for which exclude returns true. Sentinel entries are
// always excluded.
func (f *FS) Documents(exclude func(path string) bool) []models.Document {
	f.mu.RLock()
	defer f.mu.RUnlock()

	docs := make([]models.Document, 0, len(f.files))
	for path, file := range f.files {
		if strings.HasSuffix(path, "/"+DirectorySentinel) {
			continue
		}
		if exclude != nil && exclude(path) {
			continue
		}
		docs = append(docs, models.Document{Path: path, Content: file.Content})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}
