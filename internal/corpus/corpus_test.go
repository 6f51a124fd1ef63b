package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/a#top", "https://example.com/a"},
		{"https://example.com/a?utm_source=x&id=3", "https://example.com/a?id=3"},
		{"https://example.com/a?share=twitter", "https://example.com/a"},
		{"https://example.com/a?UTM_Medium=m&q=go#frag", "https://example.com/a?q=go"},
		{"https://example.com/a", "https://example.com/a"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	got, ok := Resolve("https://example.com/dir/page.html", "../other.html?utm_campaign=c#s")
	if !ok || got != "https://example.com/other.html" {
		t.Errorf("Resolve = %q, %v", got, ok)
	}
	if _, ok := Resolve("https://example.com/", "mailto:someone@example.com"); ok {
		t.Error("mailto links should not resolve")
	}
}

func TestReadAndWalk(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "site")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(sub, "b.json")
	empty := filepath.Join(dir, "a.json")
	broken := filepath.Join(dir, "c.json")
	os.WriteFile(good, []byte(`{"url":"https://example.com/","content":"<p>hello</p>"}`), 0o644)
	os.WriteFile(empty, []byte(`{"url":"https://example.com/empty","content":""}`), 0o644)
	os.WriteFile(broken, []byte(`{"url":`), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644)

	files, err := Walk(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("Walk found %v, want 3 json files", files)
	}

	doc, err := Read(good)
	if err != nil || doc.URL != "https://example.com/" {
		t.Fatalf("Read good = %+v, %v", doc, err)
	}
	if _, err := Read(empty); !errors.Is(err, apperrors.ErrEmptyDocument) {
		t.Errorf("empty content error = %v", err)
	}
	if _, err := Read(broken); !errors.Is(err, apperrors.ErrMalformedDocument) {
		t.Errorf("broken json error = %v", err)
	}
	if !IsRecord(good) || IsRecord(filepath.Join(dir, "notes.txt")) || IsRecord(filepath.Join(dir, "missing.json")) {
		t.Error("IsRecord misclassified a path")
	}
}
