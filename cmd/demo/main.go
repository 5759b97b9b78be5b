package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"mangabeat/demo/tui"
	"mangabeat/manga"
	"mangabeat/story"
)

const demoLyrics = `[Verse]
Neon rain on the rooftop chase
Ink and thunder light her face
[Chorus]
Run with me through the final page
Every panel sets the stage`

func main() {
	_ = godotenv.Load()

	apiURL := getEnvOrDefault("ORCHESTRATOR_URL", "http://localhost:8080")
	panelsDir := getEnvOrDefault("PANELS_DIR", "panels")

	panels, err := loadPanels(panelsDir)
	if err != nil {
		log.Fatalf("Failed to load demo panels: %v", err)
	}

	req := story.MusicRequest{
		Panels:     panels,
		Lyrics:     demoLyrics,
		StyleTags:  "j-rock, anime opening, energetic",
		VocalStyle: "female",
	}

	program := tea.NewProgram(tui.NewModel(apiURL, req))
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

// loadPanels collects panel images from dir in filename order.
func loadPanels(dir string) ([]manga.Panel, error) {
	var files []string
	for _, pattern := range []string{"*.png", "*.jpg", "*.jpeg"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no panel images found in %s", dir)
	}
	sort.Strings(files)

	panels := make([]manga.Panel, 0, len(files))
	for i, f := range files {
		panels = append(panels, manga.Panel{Index: i + 1, ImagePath: f})
	}
	return panels, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
