package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mangabeat/captions"
	"mangabeat/common"
	"mangabeat/config"
	"mangabeat/kafka"
	"mangabeat/providers"
	"mangabeat/publish"
	"mangabeat/story"
)

// publishingRunner runs animation jobs and, when configured, pushes the
// finished video to S3 and YouTube.
type publishingRunner struct {
	orchestrator *story.Orchestrator
	uploads      *common.S3
	youtube      *publish.YouTube
}

func (r *publishingRunner) AnimateDialogue(ctx context.Context, req story.DialogueRequest) (*story.Result, error) {
	result, err := r.orchestrator.AnimateDialogue(ctx, req)
	if err != nil {
		return nil, err
	}
	r.distribute(ctx, result)
	return result, nil
}

func (r *publishingRunner) AnimateMusic(ctx context.Context, req story.MusicRequest) (*story.Result, error) {
	result, err := r.orchestrator.AnimateMusic(ctx, req)
	if err != nil {
		return nil, err
	}
	r.distribute(ctx, result)
	return result, nil
}

// distribute uploads the final video to whatever destinations are
// configured. Upload failures are logged, not fatal: the video is still
// on disk.
func (r *publishingRunner) distribute(ctx context.Context, result *story.Result) {
	if r.uploads != nil {
		uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		key, err := r.uploads.UploadVideo(uploadCtx, result.StoryID, result.FinalVideoPath)
		cancel()
		if err != nil {
			log.Printf("[Worker] S3 upload failed for %s: %v", result.StoryID, err)
		} else {
			log.Printf("[Worker] Uploaded %s to S3 as %s", result.StoryID, key)
		}
	}

	if r.youtube != nil {
		meta := publish.MetadataForStory(result, os.Getenv("YOUTUBE_TITLE"))
		videoID, err := r.youtube.Upload(result.FinalVideoPath, meta)
		if err != nil {
			log.Printf("[Worker] YouTube upload failed for %s: %v", result.StoryID, err)
		} else {
			log.Printf("[Worker] Published %s to YouTube: %s", result.StoryID, videoID)
		}
	}
}

func main() {
	_ = godotenv.Load()

	outputDir := config.OutputDir
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		outputDir = v
	}

	svcs := providers.FromEnv()
	aligner := captions.NewCaptionAligner(svcs.Align, svcs.Align)
	orchestrator := story.NewOrchestrator(svcs.Video, svcs.Speech, svcs.Music, aligner, outputDir)

	runner := &publishingRunner{
		orchestrator: orchestrator,
		uploads:      common.NewS3FromEnv(context.Background()),
	}
	if sa := os.Getenv("YOUTUBE_SERVICE_ACCOUNT"); sa != "" {
		yt, err := publish.NewYouTube(context.Background(), sa)
		if err != nil {
			log.Printf("[Worker] YouTube disabled: %v", err)
		} else {
			runner.youtube = yt
			log.Println("[Worker] YouTube publishing enabled")
		}
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: kafka.Brokers(),
		Topic:   kafka.Topic(),
		GroupID: kafka.GroupID(),
		Handler: kafka.NewStoryJobHandler(runner),
	})
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}
	log.Println("[Worker] Waiting for animation jobs. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[Worker] Shutting down...")
	cancel()
	time.Sleep(2 * time.Second)
	if err := consumer.Close(); err != nil {
		log.Printf("[Worker] Error closing consumer: %v", err)
	}
}
