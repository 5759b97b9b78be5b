package manga

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ImageGenerator is the external image model: labeled reference images in,
// one image out. Returning multiple images or none is a generation
// failure, not something this package corrects.
type ImageGenerator interface {
	Generate(ctx context.Context, refs []ReferenceImage, prompt string) ([]byte, error)
}

// CharacterDescriber produces a short appearance description from a
// character reference sheet. The description is a text anchor embedded in
// every panel prompt to prevent character drift.
type CharacterDescriber interface {
	Describe(ctx context.Context, name string, image []byte) (string, error)
}

// Generator produces manga panels sequentially, chaining each generated
// panel into the next call as a style reference.
type Generator struct {
	images    ImageGenerator
	describer CharacterDescriber
	outputDir string
	urlPrefix string
	limiter   *rate.Limiter
}

func NewGenerator(images ImageGenerator, describer CharacterDescriber, outputDir string) *Generator {
	return &Generator{
		images:    images,
		describer: describer,
		outputDir: outputDir,
		urlPrefix: "/assets/outputs/manga",
		// generation endpoints throttle hard; stay under one call per 2s
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// GenerateStreaming generates panels and emits events as they complete.
// The channel is closed when the run finishes. Per-panel failures emit
// EventPanelError and the run continues with the next panel.
func (g *Generator) GenerateStreaming(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, len(req.StoryBeats)*2+4)
	go func() {
		defer close(events)
		g.run(ctx, req, events)
	}()
	return events
}

// Generate is the blocking variant: it drains the event stream and
// returns the completed panels.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Panel, error) {
	var panels []Panel
	var runErr error
	for ev := range g.GenerateStreaming(ctx, req) {
		switch ev.Kind {
		case EventPanel:
			panels = append(panels, *ev.Panel)
		case EventError:
			runErr = fmt.Errorf("%s", ev.Message)
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	return panels, nil
}

func (g *Generator) run(ctx context.Context, req Request, events chan<- Event) {
	if err := ValidateRequest(req); err != nil {
		events <- Event{Kind: EventError, Message: err.Error()}
		return
	}

	totalPanels := len(req.StoryBeats)
	dialogues := make([]string, totalPanels)
	copy(dialogues, req.Dialogues)

	mangaID := uuid.NewString()[:8]
	start := time.Now()

	type characterPart struct {
		name string
		ref  ReferenceImage
	}
	parts := make([]characterPart, 0, len(req.Characters))
	names := make([]string, 0, len(req.Characters))
	for i, ch := range req.Characters {
		data, err := os.ReadFile(ch.Path)
		if err != nil {
			events <- Event{Kind: EventError, Message: fmt.Sprintf("character image not found: %s", ch.Path)}
			return
		}
		parts = append(parts, characterPart{
			name: ch.Name,
			ref: ReferenceImage{
				Label:    fmt.Sprintf("[IMAGE %d - CHARACTER REFERENCE: %s]", i+1, ch.Name),
				Data:     data,
				MIMEType: mimeForPath(ch.Path),
			},
		})
		names = append(names, ch.Name)
		log.Printf("[PanelSequencer] Loaded character %d: %s", i+1, ch.Name)
	}

	// Describe each character once up front so every panel prompt carries
	// a text anchor alongside the pixel reference.
	descriptions := make(map[string]string, len(parts))
	for _, p := range parts {
		if g.describer == nil {
			break
		}
		if err := g.limiter.Wait(ctx); err != nil {
			events <- Event{Kind: EventError, Message: err.Error()}
			return
		}
		desc, err := g.describer.Describe(ctx, p.name, p.ref.Data)
		if err != nil {
			log.Printf("[PanelSequencer] Character description failed for %s: %v", p.name, err)
			continue
		}
		descriptions[p.name] = TruncateDescription(desc)
	}

	events <- Event{Kind: EventStart, MangaID: mangaID, TotalPanels: totalPanels,
		Message: strings.Join(names, " & ")}

	var previousPanel []byte
	generated := 0
	for i, beat := range req.StoryBeats {
		events <- Event{Kind: EventProgress, MangaID: mangaID, PanelIndex: i + 1, TotalPanels: totalPanels,
			Message: fmt.Sprintf("Generating panel %d...", i+1)}

		prompt := BuildPanelPrompt(names, beat, req.Style, i, totalPanels, previousPanel != nil, descriptions)

		refs := make([]ReferenceImage, 0, len(parts)+1)
		for _, p := range parts {
			refs = append(refs, p.ref)
		}
		if previousPanel != nil {
			refs = append(refs, ReferenceImage{
				Label:    fmt.Sprintf("[IMAGE %d - PREVIOUS PANEL: COPY THIS EXACT ART STYLE - same illustration technique, same coloring, same linework.]", len(parts)+1),
				Data:     previousPanel,
				MIMEType: "image/png",
			})
		}

		if err := g.limiter.Wait(ctx); err != nil {
			events <- Event{Kind: EventError, Message: err.Error()}
			return
		}
		image, err := g.images.Generate(ctx, refs, prompt)
		if err != nil || len(image) == 0 {
			msg := "failed to generate image"
			if err != nil {
				msg = err.Error()
			}
			log.Printf("[PanelSequencer] Panel %d error: %s", i+1, msg)
			events <- Event{Kind: EventPanelError, MangaID: mangaID, PanelIndex: i + 1, TotalPanels: totalPanels, Message: msg}
			continue
		}

		filename := fmt.Sprintf("%s_panel_%d.png", mangaID, i+1)
		panelPath := filepath.Join(g.outputDir, filename)
		if err := os.WriteFile(panelPath, image, 0o644); err != nil {
			events <- Event{Kind: EventPanelError, MangaID: mangaID, PanelIndex: i + 1, TotalPanels: totalPanels,
				Message: fmt.Sprintf("failed to save panel: %v", err)}
			continue
		}

		previousPanel = image
		generated++
		panel := Panel{
			Index:     i + 1,
			StoryBeat: beat,
			Dialogue:  dialogues[i],
			ImagePath: panelPath,
			ImageURL:  g.urlPrefix + "/" + filename,
		}
		log.Printf("[PanelSequencer] Panel %d saved: %s", i+1, filename)
		events <- Event{Kind: EventPanel, MangaID: mangaID, PanelIndex: i + 1, TotalPanels: totalPanels, Panel: &panel}
	}

	elapsed := time.Since(start).Seconds()
	events <- Event{Kind: EventComplete, MangaID: mangaID, TotalPanels: generated, ElapsedSeconds: elapsed}
	log.Printf("[PanelSequencer] Manga complete: %d panels in %.1fs", generated, elapsed)
}

func mimeForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
