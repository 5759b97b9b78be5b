package providers

import (
	"context"
	"fmt"
	"log"
	"time"

	"mangabeat/captions"
)

// AlignService calls the forced-alignment sidecar. Alignment is quick
// compared to generation, so it gets a shorter timeout.
type AlignService struct {
	client *Client
}

func NewAlignService(baseURL string) *AlignService {
	return &AlignService{client: NewClient(baseURL, 2*time.Minute)}
}

type alignRequest struct {
	AudioPath string `json:"audio_path"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
}

type alignResponse struct {
	Units []captions.AlignedUnit `json:"units"`
	Error string                 `json:"error,omitempty"`
}

func (s *AlignService) Align(ctx context.Context, audioPath, text, language string) ([]captions.AlignedUnit, error) {
	var resp alignResponse
	err := s.client.postJSON(ctx, "/align", alignRequest{
		AudioPath: audioPath,
		Text:      text,
		Language:  language,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("alignment failed: %s", resp.Error)
	}
	return resp.Units, nil
}

type segmentRequest struct {
	Text string `json:"text"`
}

type segmentResponse struct {
	Words []string `json:"words"`
}

// Segment asks the sidecar to split logographic text into words. The
// captions.WordSegmenter interface carries no error, so a failed call
// logs and returns nil, which leaves the character-level units as-is.
func (s *AlignService) Segment(text string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var resp segmentResponse
	if err := s.client.postJSON(ctx, "/segment", segmentRequest{Text: text}, &resp); err != nil {
		log.Printf("[AlignService] Word segmentation failed: %v", err)
		return nil
	}
	return resp.Words
}
