package graph

import (
	"path/filepath"
	"testing"
)

// TestFileName tests graph file naming from seed URLs.
func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed     string
		expected string
	}{
		{seed: "https://www.acme.test/", expected: "acme.test.json"},
		{seed: "https://Acme.test/about", expected: "acme.test.json"},
		{seed: "https://blog.acme.test", expected: "blog.acme.test.json"},
		{seed: "http://localhost:8080/", expected: "localhost_8080.json"},
	}

	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			t.Parallel()

			got, err := FileName(tt.seed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}

	if _, err := FileName("no-host"); err == nil {
		t.Error("expected error for seed without host")
	}
}

// TestOutputPath tests joining with the output directory.
func TestOutputPath(t *testing.T) {
	t.Parallel()

	got, err := OutputPath("/data/graphs", "https://acme.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join("/data/graphs", "acme.test.json") {
		t.Errorf("unexpected path %s", got)
	}
}
