package publish

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"mangabeat/story"
)

// Metadata describes the uploaded video listing.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
}

// YouTube uploads finished story videos as Shorts.
type YouTube struct {
	service *youtube.Service
}

func NewYouTube(ctx context.Context, serviceAccountFile string) (*YouTube, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	return &YouTube{service: service}, nil
}

// Upload publishes the video and returns its YouTube id.
func (y *YouTube) Upload(videoPath string, meta Metadata) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat video file: %w", err)
	}
	log.Printf("[Publish] Uploading %s (%.2f MB)", videoPath, float64(info.Size())/(1024*1024))

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}

	call := y.service.Videos.Insert([]string{"snippet", "status"}, video).Media(file)
	response, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	log.Printf("[Publish] Uploaded! https://youtube.com/shorts/%s", response.Id)
	return response.Id, nil
}

// MetadataForStory builds a Shorts listing from a finished run. Titles
// over YouTube's 100-character limit are truncated with an ellipsis.
func MetadataForStory(result *story.Result, title string) Metadata {
	if title == "" {
		title = "Animated story " + result.StoryID
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	description := fmt.Sprintf(
		"%s\n\n"+
			"An animated story in %d panels.\n\n"+
			"#manga #animation #shorts",
		title, result.ClipCount,
	)

	return Metadata{
		Title:       title,
		Description: description,
		Tags:        []string{"manga", "animation", "animated story", "shorts"},
		CategoryID:  "1",
	}
}
