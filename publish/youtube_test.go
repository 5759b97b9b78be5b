package publish

import (
	"strings"
	"testing"

	"mangabeat/story"
)

func TestMetadataForStory(t *testing.T) {
	result := &story.Result{StoryID: "abc12345", ClipCount: 4}

	meta := MetadataForStory(result, "The Treasure Map")
	if meta.Title != "The Treasure Map" {
		t.Errorf("title = %q", meta.Title)
	}
	if !strings.Contains(meta.Description, "4 panels") {
		t.Errorf("description = %q", meta.Description)
	}
	if meta.CategoryID == "" || len(meta.Tags) == 0 {
		t.Errorf("metadata incomplete: %+v", meta)
	}
}

func TestMetadataForStoryDefaultsAndTruncates(t *testing.T) {
	result := &story.Result{StoryID: "abc12345", ClipCount: 2}

	meta := MetadataForStory(result, "")
	if !strings.Contains(meta.Title, "abc12345") {
		t.Errorf("default title = %q", meta.Title)
	}

	long := strings.Repeat("a very long title ", 10)
	meta = MetadataForStory(result, long)
	if len(meta.Title) > 100 {
		t.Errorf("title length = %d, want <= 100", len(meta.Title))
	}
	if !strings.HasSuffix(meta.Title, "...") {
		t.Errorf("truncated title = %q", meta.Title)
	}
}
