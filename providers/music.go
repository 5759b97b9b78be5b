package providers

import (
	"context"
	"fmt"
	"log"

	"mangabeat/music"
)

// MusicService sends a composition plan to the music model sidecar and
// returns the generated track's path.
type MusicService struct {
	client *Client
}

func NewMusicService(baseURL string) *MusicService {
	return &MusicService{client: NewClient(baseURL, 0)}
}

type composeRequest struct {
	Plan   music.CompositionPlan `json:"plan"`
	Prompt string                `json:"prompt,omitempty"`
	// the model must honor per-section durations exactly or the lyric
	// captions drift off their panels
	RespectSectionDurations bool `json:"respect_section_durations"`
}

type composeResponse struct {
	AudioPath string `json:"audio_path"`
	Error     string `json:"error,omitempty"`
}

func (s *MusicService) Compose(ctx context.Context, plan music.CompositionPlan, prompt string) (string, error) {
	log.Printf("[MusicService] Composing %d sections (%ds total)", len(plan.Sections), plan.TotalDurationMs()/1000)

	var resp composeResponse
	if err := s.client.postJSON(ctx, "/compose", composeRequest{Plan: plan, Prompt: prompt, RespectSectionDurations: true}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("music composition failed: %s", resp.Error)
	}
	if resp.AudioPath == "" {
		return "", fmt.Errorf("music composition returned no audio")
	}
	return resp.AudioPath, nil
}
