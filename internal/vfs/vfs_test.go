package vfs

import (
	"errors"
	"strings"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	fs := New()
	if err := fs.Write("/docs/prd.md", "# PRD"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, err := fs.Read("/docs/prd.md")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "# PRD" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestWritePreservesCreatedAt(t *testing.T) {
	fs := New()
	if err := fs.Write("/a.txt", "one"); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := fs.Stat("/a.txt")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := fs.Write("/a.txt", "two"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second, err := fs.Stat("/a.txt")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("created time should survive overwrite")
	}
	if second.SizeBytes != len("two") {
		t.Fatalf("size = %d, want %d", second.SizeBytes, len("two"))
	}
}

func TestRejectsRelativePaths(t *testing.T) {
	fs := New()
	ops := map[string]func() error{
		"write": func() error { return fs.Write("docs/x.md", "x") },
		"read":  func() error { _, err := fs.Read("x.md"); return err },
		"edit":  func() error { return fs.Edit("x.md", "a", "b") },
		"list":  func() error { _, err := fs.List("docs"); return err },
		"glob":  func() error { _, err := fs.Glob("*.md", "docs"); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("expected ErrInvalidPath, got %v", err)
			}
		})
	}
}

func TestReadMissing(t *testing.T) {
	fs := New()
	_, err := fs.Read("/missing.txt")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestEditUniqueMatch(t *testing.T) {
	fs := New()
	if err := fs.Write("/t.md", "alpha beta gamma"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Edit("/t.md", "beta", "delta"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	content, _ := fs.Read("/t.md")
	if content != "alpha delta gamma" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestEditNotFound(t *testing.T) {
	fs := New()
	if err := fs.Write("/t.md", "alpha"); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := fs.Edit("/t.md", "omega", "x")
	if !errors.Is(err, ErrStringNotFound) {
		t.Fatalf("expected ErrStringNotFound, got %v", err)
	}
}

func TestEditAmbiguous(t *testing.T) {
	fs := New()
	if err := fs.Write("/t.md", "test test test"); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := fs.Edit("/t.md", "test", "x")
	var ambiguous *AmbiguousEditError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousEditError, got %v", err)
	}
	if ambiguous.Occurrences != 3 {
		t.Fatalf("occurrences = %d, want 3", ambiguous.Occurrences)
	}
	// The file must be unchanged after a failed edit.
	content, _ := fs.Read("/t.md")
	if content != "test test test" {
		t.Fatalf("file mutated by failed edit: %q", content)
	}
}

func TestListDirectChildren(t *testing.T) {
	fs := New()
	for _, p := range []string{"/a/one.md", "/a/two.md", "/a/sub/deep.md", "/b/other.md"} {
		if err := fs.Write(p, "x"); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	entries, err := fs.List("/a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"sub", "one.md", "two.md"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	if !entries[0].IsDir {
		t.Fatal("sub should be reported as a directory")
	}
}

func TestListEmptyIsNotError(t *testing.T) {
	fs := New()
	entries, err := fs.List("/nothing")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestGlobLexicographicOrder(t *testing.T) {
	fs := New()
	for _, p := range []string{"/a/b.md", "/a/aa.md", "/a/c.md"} {
		if err := fs.Write(p, "x"); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	matches, err := fs.Glob("/a/*.md", "/")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	want := "/a/aa.md\n/a/b.md\n/a/c.md"
	if strings.Join(matches, "\n") != want {
		t.Fatalf("matches = %v", matches)
	}
}

func TestGlobExcludesSentinels(t *testing.T) {
	fs := New()
	if err := fs.Mkdir("/docs"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := fs.Write("/docs/readme.md", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	matches, err := fs.Glob("/docs/*", "/")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 || matches[0] != "/docs/readme.md" {
		t.Fatalf("matches = %v", matches)
	}
}

func TestGlobRelativePattern(t *testing.T) {
	fs := New()
	if err := fs.Write("/base/x.txt", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	matches, err := fs.Glob("*.txt", "/base")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 || matches[0] != "/base/x.txt" {
		t.Fatalf("matches = %v", matches)
	}
}

func TestDocumentsExcludesAgentDefinitions(t *testing.T) {
	fs := New()
	files := []string{
		"/docs/prd.md",
		"/.bmad-core/agents/pm.md",
		"/.bmad-creative/agents/poet.md",
	}
	for _, p := range files {
		if err := fs.Write(p, "x"); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	docs := fs.Documents(func(path string) bool {
		return strings.HasPrefix(path, "/.bmad-core/agents/") ||
			(strings.HasPrefix(path, "/.bmad-") && strings.Contains(path, "/agents/"))
	})
	if len(docs) != 1 || docs[0].Path != "/docs/prd.md" {
		t.Fatalf("docs = %v", docs)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	fs := New()
	if err := fs.Write("/a.txt", "alpha"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Write("/b/c.txt", "bravo"); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap := fs.Snapshot()
	restored := New()
	restored.Restore(snap)
	for path, content := range snap {
		got, err := restored.Read(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if got != content {
			t.Fatalf("content mismatch at %s", path)
		}
	}
}
