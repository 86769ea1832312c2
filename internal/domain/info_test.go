package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInfoProperties_Select(t *testing.T) {
	build := NewInfoProperties(map[string]string{"version": "1.2", "scm": "abc"})

	tests := []struct {
		name     string
		allow    []string
		expected map[string]string
	}{
		{"single key", []string{"version"}, map[string]string{"build.version": "1.2"}},
		{"both keys", []string{"version", "scm"}, map[string]string{"build.version": "1.2", "build.scm": "abc"}},
		{"unknown key", []string{"time"}, map[string]string{}},
		{"empty allow list", nil, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := build.Select("build", tt.allow)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Select() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInfoProperties_IsImmutable(t *testing.T) {
	source := map[string]string{"commit.id": "abc123"}
	git := NewInfoProperties(source)

	source["commit.id"] = "changed"
	all := git.All()
	all["branch"] = "main"

	if v, _ := git.Get("commit.id"); v != "abc123" {
		t.Errorf("Get(commit.id) = %q, want abc123", v)
	}
	if git.Len() != 1 {
		t.Errorf("Len() = %d, want 1", git.Len())
	}
}
