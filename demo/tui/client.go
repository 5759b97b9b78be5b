package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mangabeat/story"
)

// StoryClient is a thin HTTP client for the animation API
type StoryClient struct {
	baseURL string
	client  *http.Client
}

// NewStoryClient creates a new animation API client
func NewStoryClient(baseURL string) *StoryClient {
	return &StoryClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetStatus fetches the current run status from the API
func (c *StoryClient) GetStatus(storyID string) (*StatusResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/api/stories/" + storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// StartMusic submits a music video run and returns the assigned story id
func (c *StoryClient) StartMusic(req story.MusicRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Post(c.baseURL+"/api/stories/music", "application/json", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var started struct {
		StoryID string `json:"story_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return started.StoryID, nil
}
