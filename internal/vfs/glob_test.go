package vfs

import "testing"

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"/a/*.md", "/a/x.md", true},
		{"/a/*.md", "/a/b/x.md", false},
		{"/a/**/*.md", "/a/b/c/x.md", true},
		{"/**/*.md", "/x.md", true},
		{"/**/*.md", "/deep/nested/x.md", true},
		{"/**", "/anything/at/all", true},
		{"/a/?.md", "/a/b.md", true},
		{"/a/?.md", "/a/bb.md", false},
		{"/a/[bc].md", "/a/b.md", true},
		{"/a/[bc].md", "/a/d.md", false},
		{"/a/**/z.md", "/a/z.md", true},
		{"/.bmad-*/agents/*.md", "/.bmad-core/agents/pm.md", true},
		{"/.bmad-*/agents/*.md", "/.bmad-core/templates/pm.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			got, err := matchGlob(tt.pattern, tt.name)
			if err != nil {
				t.Fatalf("matchGlob: %v", err)
			}
			if got != tt.want {
				t.Fatalf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}
