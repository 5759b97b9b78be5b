package providers

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
)

// VideoService animates panel images through the image-to-video model
// sidecar. Clips come back as file paths on the shared volume.
type VideoService struct {
	client *Client
}

func NewVideoService(baseURL string) *VideoService {
	return &VideoService{client: NewClient(baseURL, 0)}
}

type animateRequest struct {
	ImagePath       string `json:"image_path"`
	DurationSeconds int    `json:"duration_seconds"`
	ClipIndex       int    `json:"clip_index"`
}

type animateResponse struct {
	VideoPath       string  `json:"video_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

func (s *VideoService) AnimatePanel(ctx context.Context, imagePath string, durationSeconds, clipIndex int) (string, float64, error) {
	log.Printf("[VideoService] Animating %s (%ds, clip %d)", filepath.Base(imagePath), durationSeconds, clipIndex+1)

	var resp animateResponse
	err := s.client.postJSON(ctx, "/animate", animateRequest{
		ImagePath:       imagePath,
		DurationSeconds: durationSeconds,
		ClipIndex:       clipIndex,
	}, &resp)
	if err != nil {
		return "", 0, err
	}
	if resp.Error != "" {
		return "", 0, fmt.Errorf("video generation failed: %s", resp.Error)
	}
	if resp.VideoPath == "" {
		return "", 0, fmt.Errorf("video generation returned no clip for %s", filepath.Base(imagePath))
	}
	return resp.VideoPath, resp.DurationSeconds, nil
}
