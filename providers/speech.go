package providers

import (
	"context"
	"fmt"
)

// SpeechService designs character voices and synthesizes dialogue lines
// through the TTS sidecar.
type SpeechService struct {
	client *Client
}

func NewSpeechService(baseURL string) *SpeechService {
	return &SpeechService{client: NewClient(baseURL, 0)}
}

type designVoiceRequest struct {
	Name    string `json:"name"`
	Persona string `json:"persona,omitempty"`
}

type designVoiceResponse struct {
	VoiceID string `json:"voice_id"`
	Error   string `json:"error,omitempty"`
}

func (s *SpeechService) DesignVoice(ctx context.Context, name, persona string) (string, error) {
	var resp designVoiceResponse
	if err := s.client.postJSON(ctx, "/voices/design", designVoiceRequest{Name: name, Persona: persona}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("voice design failed: %s", resp.Error)
	}
	return resp.VoiceID, nil
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
}

type synthesizeResponse struct {
	AudioPath string `json:"audio_path"`
	Error     string `json:"error,omitempty"`
}

func (s *SpeechService) Synthesize(ctx context.Context, text, voiceID, language string) (string, error) {
	var resp synthesizeResponse
	err := s.client.postJSON(ctx, "/tts", synthesizeRequest{
		Text:     text,
		VoiceID:  voiceID,
		Language: language,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("speech synthesis failed: %s", resp.Error)
	}
	if resp.AudioPath == "" {
		return "", fmt.Errorf("speech synthesis returned no audio")
	}
	return resp.AudioPath, nil
}
