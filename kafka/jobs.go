package kafka

import (
	"context"
	"log"

	"mangabeat/story"
)

// StoryJob is the message schema on the animation jobs topic. Exactly
// one of Dialogue or Music must be set, matching Mode.
type StoryJob struct {
	Mode     string                 `json:"mode"` // "dialogue" or "music"
	Dialogue *story.DialogueRequest `json:"dialogue,omitempty"`
	Music    *story.MusicRequest    `json:"music,omitempty"`
}

// Runner is the blocking animation capability the worker drives.
type Runner interface {
	AnimateDialogue(ctx context.Context, req story.DialogueRequest) (*story.Result, error)
	AnimateMusic(ctx context.Context, req story.MusicRequest) (*story.Result, error)
}

// NewStoryJobHandler builds the message handler for animation jobs.
// Malformed jobs are marked and skipped; a failed animation leaves the
// message unmarked so another worker can retry it.
func NewStoryJobHandler(runner Runner) *TypedMessageHandler[StoryJob] {
	return &TypedMessageHandler[StoryJob]{
		Validate: func(job *StoryJob) bool {
			switch job.Mode {
			case "dialogue":
				if job.Dialogue == nil || len(job.Dialogue.Panels) == 0 {
					log.Printf("[Worker] Dialogue job missing panels, skipping")
					return false
				}
			case "music":
				if job.Music == nil || len(job.Music.Panels) == 0 {
					log.Printf("[Worker] Music job missing panels, skipping")
					return false
				}
			default:
				log.Printf("[Worker] Unknown job mode %q, skipping", job.Mode)
				return false
			}
			return true
		},
		Process: func(ctx context.Context, job *StoryJob) error {
			switch job.Mode {
			case "dialogue":
				result, err := runner.AnimateDialogue(ctx, *job.Dialogue)
				if err != nil {
					log.Printf("[Worker] Dialogue job failed: %v", err)
					return err
				}
				log.Printf("[Worker] Story %s complete: %s (%d/%d clips)",
					result.StoryID, result.FinalVideoPath, result.ClipCount, result.ClipsAttempted)
			case "music":
				result, err := runner.AnimateMusic(ctx, *job.Music)
				if err != nil {
					log.Printf("[Worker] Music job failed: %v", err)
					return err
				}
				log.Printf("[Worker] Story %s complete: %s (%d/%d clips)",
					result.StoryID, result.FinalVideoPath, result.ClipCount, result.ClipsAttempted)
			}
			return nil
		},
		AlwaysMark: true,
	}
}
