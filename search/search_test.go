package search

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestFindSurveyImagesAndConfigs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "session1")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	files := []string{
		filepath.Join(dir, "survey_a.tif"),
		filepath.Join(sub, "survey_b.tif"),
		filepath.Join(dir, "run.json"),
		filepath.Join(dir, "notes.txt"),
	}
	for _, f := range files {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", f, err)
		}
	}

	images, err := FindSurveyImages(dir, "")
	if err != nil {
		t.Fatalf("FindSurveyImages: %v", err)
	}
	sort.Strings(images)
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2: %v", len(images), images)
	}

	configs, err := FindConfigs(dir, "")
	if err != nil {
		t.Fatalf("FindConfigs: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("got %d configs, want 1: %v", len(configs), configs)
	}
}
