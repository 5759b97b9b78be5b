package story

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mangabeat/captions"
	"mangabeat/config"
	"mangabeat/manga"
	"mangabeat/media"
	"mangabeat/music"
)

// ClipGenerator animates a single panel image into a short video clip.
// Implementations return the written clip path and its actual duration.
type ClipGenerator interface {
	AnimatePanel(ctx context.Context, imagePath string, durationSeconds, clipIndex int) (videoPath string, actualDuration float64, err error)
}

// SpeechSynthesizer designs character voices and renders dialogue lines
// to audio files. An empty voiceID asks for the provider's default voice.
type SpeechSynthesizer interface {
	DesignVoice(ctx context.Context, name, persona string) (voiceID string, err error)
	Synthesize(ctx context.Context, text, voiceID, language string) (audioPath string, err error)
}

// assembler is the slice of media.Composer the orchestrator uses.
type assembler interface {
	Concatenate(ctx context.Context, clips []string, outputPath string, opts media.ConcatOptions) error
	Mux(ctx context.Context, videoPath, audioPath, outputPath string, opts media.MuxOptions) error
}

type captionRenderer interface {
	RenderWithCaptions(ctx context.Context, videoPath string, segments []captions.CaptionSegment, outputPath string, opts captions.RenderOptions) error
}

// Orchestrator runs the full panel-to-video pipeline: TTS and alignment,
// clip animation, per-clip merging, caption burn-in, concatenation,
// music, and verification with a one-shot resolution repair.
type Orchestrator struct {
	clips    ClipGenerator
	tts      SpeechSynthesizer
	musicGen music.Generator
	aligner  *captions.CaptionAligner

	composer assembler
	renderer captionRenderer
	voices   *VoiceCache

	outputDir  string
	retryDelay time.Duration
	verify     func(path string, exp media.Expectations) media.VerificationResult
}

func NewOrchestrator(clips ClipGenerator, tts SpeechSynthesizer, musicGen music.Generator, aligner *captions.CaptionAligner, outputDir string) *Orchestrator {
	return &Orchestrator{
		clips:      clips,
		tts:        tts,
		musicGen:   musicGen,
		aligner:    aligner,
		composer:   media.NewComposer(outputDir),
		renderer:   captions.NewRenderer(),
		voices:     NewVoiceCache(),
		outputDir:  outputDir,
		retryDelay: config.RetryDelay,
		verify:     media.Verify,
	}
}

// AnimateDialogueStreaming runs the dialogue pipeline, emitting progress
// events. The channel is closed after the Complete or Error event.
func (o *Orchestrator) AnimateDialogueStreaming(ctx context.Context, req DialogueRequest) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		o.runDialogue(ctx, req, events)
	}()
	return events
}

// AnimateDialogue is the blocking form of AnimateDialogueStreaming.
func (o *Orchestrator) AnimateDialogue(ctx context.Context, req DialogueRequest) (*Result, error) {
	return collectResult(o.AnimateDialogueStreaming(ctx, req))
}

// AnimateMusicStreaming runs the music video pipeline, emitting progress
// events. Clip animation and music composition run concurrently.
func (o *Orchestrator) AnimateMusicStreaming(ctx context.Context, req MusicRequest) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		o.runMusic(ctx, req, events)
	}()
	return events
}

// AnimateMusic is the blocking form of AnimateMusicStreaming.
func (o *Orchestrator) AnimateMusic(ctx context.Context, req MusicRequest) (*Result, error) {
	return collectResult(o.AnimateMusicStreaming(ctx, req))
}

func collectResult(events <-chan Event) (*Result, error) {
	var result *Result
	var errMsg string
	for ev := range events {
		switch ev.Kind {
		case EventComplete:
			result = ev.Result
		case EventError:
			errMsg = ev.Message
		}
	}
	if result == nil {
		if errMsg == "" {
			errMsg = "animation produced no result"
		}
		return nil, errors.New(errMsg)
	}
	return result, nil
}

func (o *Orchestrator) runDialogue(ctx context.Context, req DialogueRequest, events chan<- Event) {
	storyID := req.StoryID
	if storyID == "" {
		storyID = uuid.NewString()[:8]
	}
	if len(req.Panels) == 0 {
		events <- Event{Kind: EventError, StoryID: storyID, Message: "no panels to animate"}
		return
	}
	if req.ClipDuration != 0 && !config.IsSupportedClipDuration(req.ClipDuration) {
		events <- Event{Kind: EventError, StoryID: storyID,
			Message: fmt.Sprintf("unsupported clip duration %ds", req.ClipDuration)}
		return
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	workDir := filepath.Join(o.outputDir, "story_"+storyID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}

	total := len(req.Panels)
	events <- Event{Kind: EventStart, StoryID: storyID, Total: total,
		Message: fmt.Sprintf("Animating %d panels with dialogue", total)}

	// Parse dialogue and pick per-panel clip durations. Without an explicit
	// duration each spoken line gets the shortest supported duration that
	// fits its estimated speech time.
	lines := make([]*DialogueLine, total)
	durations := make([]int, total)
	dialogueCount := 0
	for i, p := range req.Panels {
		lines[i] = ParseDialogue(p.Dialogue, p.Index)
		switch {
		case req.ClipDuration > 0:
			durations[i] = req.ClipDuration
		case lines[i] != nil:
			durations[i] = captions.EstimateDurationFromDialogue(lines[i].Text)
		default:
			durations[i] = config.DefaultClipDurationSeconds
		}
		if lines[i] != nil {
			dialogueCount++
		}
	}

	// TTS and word alignment per spoken line. A failed line degrades to a
	// silent clip rather than failing the story.
	audios := make([]string, total)
	caps := make([][]captions.CaptionSegment, total)
	for i, line := range lines {
		if line == nil {
			continue
		}
		events <- Event{Kind: EventTTSProgress, StoryID: storyID, ClipIndex: i + 1, Total: total,
			Message: fmt.Sprintf("Synthesizing speech %d/%d", i+1, total)}

		voiceID, err := o.voices.Get(ctx, line.Speaker, req.Personas[line.Speaker], o.tts.DesignVoice)
		if err != nil {
			log.Printf("[AnimatedStory] Voice design failed for %q, using default voice: %v", line.Speaker, err)
			voiceID = ""
		}

		var audioPath string
		err = o.retry(ctx, func() error {
			path, synthErr := o.tts.Synthesize(ctx, line.Text, voiceID, language)
			audioPath = path
			return synthErr
		})
		if err != nil {
			log.Printf("[AnimatedStory] TTS failed for panel %d, clip will be silent: %v", i+1, err)
			continue
		}
		audios[i] = audioPath

		if req.DisableCaptions {
			continue
		}
		segments, err := o.aligner.AlignAudio(ctx, audioPath, line.Text, language, false)
		if err != nil {
			log.Printf("[AnimatedStory] Alignment failed for panel %d, no captions: %v", i+1, err)
			continue
		}
		for j := range segments {
			segments[j].Speaker = line.Speaker
		}
		caps[i] = segments
		events <- Event{Kind: EventAlignProgress, StoryID: storyID, ClipIndex: i + 1, Total: total,
			Message: fmt.Sprintf("Aligned %d words for panel %d", len(segments), i+1)}
	}

	results := o.generateClips(ctx, storyID, req.Panels, durations, events)

	// Merge audio and burn captions per clip so word timings stay on each
	// clip's own timeline.
	events <- Event{Kind: EventCompose, StoryID: storyID, Message: "Merging audio with video clips"}
	var finalClips []string
	expected := 0.0
	captioned := 0
	for i, r := range results {
		if r.VideoPath == "" {
			continue
		}
		clip := r.VideoPath

		if audios[i] != "" {
			merged := filepath.Join(workDir, fmt.Sprintf("clip_%02d_voiced.mp4", i+1))
			err := o.composer.Mux(ctx, clip, audios[i], merged, media.MuxOptions{
				Policy:        media.MuxPadThenReplace,
				VideoDuration: r.DurationSeconds,
			})
			if err != nil {
				log.Printf("[AnimatedStory] Audio merge failed for clip %d, keeping silent clip: %v", i+1, err)
			} else {
				clip = merged
			}
		}

		if len(caps[i]) > 0 {
			events <- Event{Kind: EventCaptionProgress, StoryID: storyID, ClipIndex: i + 1, Total: total,
				Message: fmt.Sprintf("Rendering captions for clip %d", i+1)}
			burned := filepath.Join(workDir, fmt.Sprintf("clip_%02d_captioned.mp4", i+1))
			err := o.renderer.RenderWithCaptions(ctx, clip, caps[i], burned, captions.RenderOptions{
				Width:  config.TargetWidth,
				Height: config.TargetHeight,
			})
			if err != nil {
				log.Printf("[AnimatedStory] Caption render failed for clip %d, continuing uncaptioned: %v", i+1, err)
			} else {
				clip = burned
				captioned++
			}
		}

		finalClips = append(finalClips, clip)
		expected += r.DurationSeconds
	}
	if len(finalClips) == 0 {
		events <- Event{Kind: EventError, StoryID: storyID,
			Message: fmt.Sprintf("all %d clips failed to generate", total)}
		return
	}

	finalPath := filepath.Join(o.outputDir, "story_"+storyID+".mp4")
	muxOpts := media.MuxOptions{Policy: media.MuxMix, MusicVolume: req.MusicVolume}
	if err := o.assemble(ctx, finalClips, req.MusicPath, finalPath, workDir, false, muxOpts); err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}

	exp := media.Expectations{
		Duration:     &expected,
		Width:        config.TargetWidth,
		Height:       config.TargetHeight,
		RequireAudio: dialogueCount > 0 || req.MusicPath != "",
	}
	verification := o.verify(finalPath, exp)
	if media.HasResolutionMismatch(verification) {
		log.Printf("[AnimatedStory] Resolution mismatch, re-encoding %d clips to %dx%d",
			len(finalClips), config.TargetWidth, config.TargetHeight)
		if err := o.assemble(ctx, finalClips, req.MusicPath, finalPath, workDir, true, muxOpts); err != nil {
			log.Printf("[AnimatedStory] Repair failed: %v", err)
		} else {
			verification = o.verify(finalPath, exp)
		}
	}

	events <- Event{Kind: EventComplete, StoryID: storyID, Total: total, Result: &Result{
		StoryID:        storyID,
		FinalVideoPath: finalPath,
		TotalDuration:  verification.ActualDuration,
		ClipCount:      len(finalClips),
		ClipsAttempted: total,
		ClipsFailed:    total - len(finalClips),
		HasAudio:       dialogueCount > 0 || req.MusicPath != "",
		HasCaptions:    captioned > 0,
		Verification:   verification,
	}}
}

func (o *Orchestrator) runMusic(ctx context.Context, req MusicRequest, events chan<- Event) {
	storyID := req.StoryID
	if storyID == "" {
		storyID = uuid.NewString()[:8]
	}
	if len(req.Panels) == 0 {
		events <- Event{Kind: EventError, StoryID: storyID, Message: "no panels to animate"}
		return
	}
	clipDuration := req.ClipDuration
	if clipDuration == 0 {
		clipDuration = config.DefaultClipDurationSeconds
	}
	if !config.IsSupportedClipDuration(clipDuration) {
		events <- Event{Kind: EventError, StoryID: storyID,
			Message: fmt.Sprintf("unsupported clip duration %ds", clipDuration)}
		return
	}

	workDir := filepath.Join(o.outputDir, "story_"+storyID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}

	total := len(req.Panels)
	events <- Event{Kind: EventStart, StoryID: storyID, Total: total,
		Message: fmt.Sprintf("Animating %d panels with music", total)}

	plan, err := music.BuildPlan(req.Lyrics, total, clipDuration, music.PlanOptions{
		Prompt:        req.StyleTags,
		VocalStyle:    req.VocalStyle,
		NegativeTags:  req.NegativeTags,
		BPM:           req.BPM,
		SectionStyles: req.SectionStyles,
	})
	if err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}
	events <- Event{Kind: EventLyricsProgress, StoryID: storyID,
		Message: fmt.Sprintf("Composition plan ready: %d sections, %ds", len(plan.Sections), plan.TotalDurationMs()/1000)}

	durations := make([]int, total)
	for i := range durations {
		durations[i] = clipDuration
	}

	// Clips and music are independent, so they run concurrently. A video
	// failure cancels the music composition; a music failure only costs
	// the soundtrack.
	var (
		results   []ClipResult
		musicPath string
		musicErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results = o.generateClips(gctx, storyID, req.Panels, durations, events)
		for _, r := range results {
			if r.VideoPath != "" {
				return nil
			}
		}
		return fmt.Errorf("all %d clips failed to generate", total)
	})
	g.Go(func() error {
		events <- Event{Kind: EventMusicProgress, StoryID: storyID, Message: "Composing music"}
		path, composeErr := o.musicGen.Compose(gctx, plan, req.StyleTags)
		if composeErr != nil {
			musicErr = composeErr
			return nil
		}
		musicPath = path
		return nil
	})
	if err := g.Wait(); err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}
	if musicErr != nil {
		log.Printf("[AnimatedStory] Music composition failed, continuing without music: %v", musicErr)
		events <- Event{Kind: EventMusicProgress, StoryID: storyID, Message: "Music failed, continuing silent"}
		musicPath = ""
	}

	var finalClips []string
	expected := 0.0
	for _, r := range results {
		if r.VideoPath == "" {
			continue
		}
		finalClips = append(finalClips, r.VideoPath)
		expected += r.DurationSeconds
	}

	events <- Event{Kind: EventCompose, StoryID: storyID, Message: "Assembling final video"}
	finalPath := filepath.Join(o.outputDir, "story_"+storyID+".mp4")
	muxOpts := media.MuxOptions{Policy: media.MuxReplace}
	if err := o.assemble(ctx, finalClips, musicPath, finalPath, workDir, false, muxOpts); err != nil {
		events <- Event{Kind: EventError, StoryID: storyID, Message: err.Error()}
		return
	}

	// Lyric captions are locked to panel boundaries instead of aligned to
	// the audio, so a failed clip shifts nothing.
	captioned := false
	if !req.DisableLyrics && musicPath != "" {
		lyricLines := music.ExtractLyricLines(req.Lyrics)
		videoMs := len(finalClips) * clipDuration * 1000
		segments := buildPanelLockedCaptions(lyricLines, len(finalClips), clipDuration*1000, videoMs)
		if len(segments) > 0 {
			events <- Event{Kind: EventCaptionProgress, StoryID: storyID,
				Message: fmt.Sprintf("Rendering %d lyric captions", len(segments))}
			burned := filepath.Join(workDir, "story_lyrics.mp4")
			err := o.renderer.RenderWithCaptions(ctx, finalPath, segments, burned, captions.RenderOptions{
				Width:  config.TargetWidth,
				Height: config.TargetHeight,
			})
			if err != nil {
				log.Printf("[AnimatedStory] Lyric render failed, continuing without captions: %v", err)
			} else if err := os.Rename(burned, finalPath); err != nil {
				log.Printf("[AnimatedStory] Could not move captioned video: %v", err)
			} else {
				captioned = true
			}
		}
	}

	exp := media.Expectations{
		Duration:     &expected,
		Width:        config.TargetWidth,
		Height:       config.TargetHeight,
		RequireAudio: musicPath != "",
	}
	verification := o.verify(finalPath, exp)
	if media.HasResolutionMismatch(verification) {
		log.Printf("[AnimatedStory] Resolution mismatch, re-encoding %d clips to %dx%d",
			len(finalClips), config.TargetWidth, config.TargetHeight)
		if err := o.assemble(ctx, finalClips, musicPath, finalPath, workDir, true, muxOpts); err != nil {
			log.Printf("[AnimatedStory] Repair failed: %v", err)
		} else {
			verification = o.verify(finalPath, exp)
		}
	}

	events <- Event{Kind: EventComplete, StoryID: storyID, Total: total, Result: &Result{
		StoryID:        storyID,
		FinalVideoPath: finalPath,
		TotalDuration:  verification.ActualDuration,
		ClipCount:      len(finalClips),
		ClipsAttempted: total,
		ClipsFailed:    total - len(finalClips),
		HasAudio:       musicPath != "",
		HasCaptions:    captioned,
		Verification:   verification,
	}}
}

// generateClips animates every panel concurrently, a few at a time. A
// panel that still fails after retries is recorded with an empty path so
// downstream counting stays positional.
func (o *Orchestrator) generateClips(ctx context.Context, storyID string, panels []manga.Panel, durations []int, events chan<- Event) []ClipResult {
	total := len(panels)
	results := make([]ClipResult, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxConcurrentClips)
	for i, panel := range panels {
		i, panel := i, panel
		g.Go(func() error {
			events <- Event{Kind: EventVideoProgress, StoryID: storyID, ClipIndex: i + 1, Total: total,
				Message: fmt.Sprintf("Animating panel %d/%d", i+1, total)}

			results[i] = ClipResult{DurationSeconds: float64(durations[i]), PanelIndex: panel.Index}
			if panel.ImagePath == "" {
				log.Printf("[AnimatedStory] Panel %d has no image, skipping", i+1)
				return nil
			}

			var clipPath string
			var actual float64
			err := o.retry(gctx, func() error {
				path, dur, genErr := o.clips.AnimatePanel(gctx, panel.ImagePath, durations[i], i)
				clipPath = path
				actual = dur
				return genErr
			})
			if err != nil {
				log.Printf("[AnimatedStory] Clip %d failed after %d attempts: %v", i+1, config.MaxGenerationAttempts, err)
				return nil
			}

			results[i].VideoPath = clipPath
			if actual > 0 {
				results[i].DurationSeconds = actual
			}
			events <- Event{Kind: EventVideoProgress, StoryID: storyID, ClipIndex: i + 1, Total: total,
				Message: fmt.Sprintf("Panel %d/%d animated", i+1, total)}
			return nil
		})
	}
	g.Wait()
	return results
}

// assemble concatenates the clips and, when a music track is present,
// muxes it in. A failed mux falls back to the silent concatenation.
func (o *Orchestrator) assemble(ctx context.Context, clips []string, musicPath, finalPath, workDir string, forceNormalize bool, muxOpts media.MuxOptions) error {
	target := finalPath
	if musicPath != "" {
		target = filepath.Join(workDir, "story_concat.mp4")
	}
	if err := o.composer.Concatenate(ctx, clips, target, media.ConcatOptions{ForceNormalize: forceNormalize}); err != nil {
		return err
	}
	if musicPath == "" {
		return nil
	}
	if err := o.composer.Mux(ctx, target, musicPath, finalPath, muxOpts); err != nil {
		log.Printf("[AnimatedStory] Music mux failed, continuing without music: %v", err)
		return os.Rename(target, finalPath)
	}
	return nil
}

// retry runs op up to MaxGenerationAttempts times with a fixed delay,
// stopping early when the context is cancelled.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), uint64(config.MaxGenerationAttempts-1)),
		ctx)
	return backoff.Retry(op, policy)
}
