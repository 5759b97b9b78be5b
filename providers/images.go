package providers

import (
	"context"
	"encoding/base64"
	"fmt"

	"mangabeat/manga"
)

// ImageService generates panel illustrations and character descriptions
// through the image model sidecar. Image bytes travel base64-encoded.
type ImageService struct {
	client *Client
}

func NewImageService(baseURL string) *ImageService {
	return &ImageService{client: NewClient(baseURL, 0)}
}

type referencePayload struct {
	Label    string `json:"label"`
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

type generateImageRequest struct {
	Prompt     string             `json:"prompt"`
	References []referencePayload `json:"references,omitempty"`
}

type generateImageResponse struct {
	Data  string `json:"data"`
	Error string `json:"error,omitempty"`
}

func (s *ImageService) Generate(ctx context.Context, refs []manga.ReferenceImage, prompt string) ([]byte, error) {
	req := generateImageRequest{Prompt: prompt}
	for _, r := range refs {
		req.References = append(req.References, referencePayload{
			Label:    r.Label,
			Data:     base64.StdEncoding.EncodeToString(r.Data),
			MIMEType: r.MIMEType,
		})
	}

	var resp generateImageResponse
	if err := s.client.postJSON(ctx, "/images/generate", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("image generation failed: %s", resp.Error)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("image generation returned invalid data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image generation returned no data")
	}
	return data, nil
}

type describeRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type describeResponse struct {
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

func (s *ImageService) Describe(ctx context.Context, name string, image []byte) (string, error) {
	var resp describeResponse
	err := s.client.postJSON(ctx, "/images/describe", describeRequest{
		Name:  name,
		Image: base64.StdEncoding.EncodeToString(image),
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("character description failed: %s", resp.Error)
	}
	return resp.Description, nil
}
