package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"mangabeat/config"
)

// MuxPolicy selects how an audio track is combined with a video track.
type MuxPolicy int

const (
	// MuxMix blends the video's existing audio with the new track.
	MuxMix MuxPolicy = iota
	// MuxReplace drops any existing audio and substitutes the new track.
	MuxReplace
	// MuxPadThenReplace pads the audio to the video's length first, then
	// replaces, forcing the output to the exact video duration.
	MuxPadThenReplace
)

// MuxOptions parameterizes Mux.
type MuxOptions struct {
	Policy MuxPolicy
	// MusicVolume applies to the incoming track under MuxMix; zero means 0.3.
	MusicVolume float64
	// VideoDuration is the ground-truth length for MuxPadThenReplace;
	// probed from the video when zero.
	VideoDuration float64
}

// ConcatOptions parameterizes Concatenate.
type ConcatOptions struct {
	TargetWidth  int
	TargetHeight int
	// ForceNormalize re-encodes every clip to the target resolution even
	// when probes agree. Used by the resolution-mismatch repair path.
	ForceNormalize bool
}

// Composer performs the deterministic assembly steps: normalization,
// concatenation, muxing, padding, and overlays. Nothing in here calls a
// generative service.
type Composer struct {
	outputDir string

	runStream func(ctx context.Context, stream *ffmpeg.Stream) error
	normalize func(ctx context.Context, clip string, width, height int, out string) error
	probe     func(path string) (ProbeResult, error)
}

func NewComposer(outputDir string) *Composer {
	c := &Composer{
		outputDir: outputDir,
		runStream: RunStream,
		probe:     Probe,
	}
	c.normalize = c.normalizeClip
	return c
}

// Normalize re-encodes a clip to the target resolution, scaling to fit and
// letterboxing with black. Fit+pad is used rather than crop so a generated
// subject is never cut off when a clip arrives in the wrong orientation.
func (c *Composer) Normalize(ctx context.Context, clip string, width, height int, out string) error {
	return c.normalize(ctx, clip, width, height, out)
}

func (c *Composer) normalizeClip(ctx context.Context, clip string, width, height int, out string) error {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		width, height, width, height)

	log.Printf("[MediaComposer] Normalizing %s to %dx%d", filepath.Base(clip), width, height)
	stream := ffmpeg.Input(clip).Output(out, ffmpeg.KwArgs{
		"vf":       vf,
		"c:v":      config.VideoCodec,
		"preset":   config.VideoPreset,
		"crf":      "18",
		"c:a":      config.AudioCodec,
		"movflags": "+faststart",
	}).OverWriteOutput()
	return c.runStream(ctx, stream)
}

// Concatenate joins clips in order. When every probed resolution matches
// it stream-copies through the concat demuxer with no re-encode; any
// mismatch normalizes all clips to the target resolution first, since
// mixed-resolution concatenation produces corrupt output.
func (c *Composer) Concatenate(ctx context.Context, clips []string, outputPath string, opts ConcatOptions) error {
	if len(clips) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	width, height := opts.TargetWidth, opts.TargetHeight
	if width == 0 || height == 0 {
		width, height = config.TargetWidth, config.TargetHeight
	}

	resolutions := make(map[[2]int]bool)
	probeFailed := false
	for _, clip := range clips {
		p, err := c.probe(clip)
		if err != nil || p.Width == 0 || p.Height == 0 {
			log.Printf("[MediaComposer] Could not probe %s: %v", filepath.Base(clip), err)
			probeFailed = true
			continue
		}
		resolutions[[2]int{p.Width, p.Height}] = true
	}

	needsNormalize := opts.ForceNormalize || probeFailed || len(resolutions) > 1
	toConcat := clips
	if needsNormalize {
		log.Printf("[MediaComposer] Normalizing %d clips to %dx%d before concat", len(clips), width, height)
		normDir, err := os.MkdirTemp("", "concat_norm_")
		if err != nil {
			return fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(normDir)

		toConcat = make([]string, 0, len(clips))
		for i, clip := range clips {
			normPath := filepath.Join(normDir, fmt.Sprintf("clip_%03d.mp4", i))
			if err := c.normalize(ctx, clip, width, height, normPath); err != nil {
				// fall back to the original clip; verification will catch
				// any residual mismatch
				log.Printf("[MediaComposer] Failed to normalize clip %d: %v", i, err)
				toConcat = append(toConcat, clip)
				continue
			}
			toConcat = append(toConcat, normPath)
		}
	}

	manifest, err := writeConcatManifest(toConcat)
	if err != nil {
		return err
	}
	defer os.Remove(manifest)

	log.Printf("[MediaComposer] Concatenating %d clips -> %s", len(toConcat), filepath.Base(outputPath))
	stream := ffmpeg.Input(manifest, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput()
	if err := c.runStream(ctx, stream); err != nil {
		return fmt.Errorf("concatenation failed: %w", err)
	}
	return nil
}

func writeConcatManifest(clips []string) (string, error) {
	f, err := os.CreateTemp("", "concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create concat manifest: %w", err)
	}
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			abs = clip
		}
		fmt.Fprintf(f, "file '%s'\n", abs)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Mux combines an audio track with a video track under the given policy.
func (c *Composer) Mux(ctx context.Context, videoPath, audioPath, outputPath string, opts MuxOptions) error {
	switch opts.Policy {
	case MuxMix:
		return c.muxMix(ctx, videoPath, audioPath, outputPath, opts.MusicVolume)
	case MuxReplace:
		return c.muxReplace(ctx, videoPath, audioPath, outputPath, 0)
	case MuxPadThenReplace:
		return c.muxPadThenReplace(ctx, videoPath, audioPath, outputPath, opts.VideoDuration)
	default:
		return fmt.Errorf("unknown mux policy %d", opts.Policy)
	}
}

func (c *Composer) muxMix(ctx context.Context, videoPath, audioPath, outputPath string, volume float64) error {
	if volume <= 0 {
		volume = 0.3
	}
	video := ffmpeg.Input(videoPath)
	music := ffmpeg.Input(audioPath).Audio().
		Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", volume)})
	mixed := ffmpeg.Filter([]*ffmpeg.Stream{video.Audio(), music}, "amix",
		ffmpeg.Args{"inputs=2:duration=first"})

	log.Printf("[MediaComposer] Mixing music into %s at volume %.2f", filepath.Base(videoPath), volume)
	stream := ffmpeg.Output([]*ffmpeg.Stream{video.Video(), mixed}, outputPath, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      config.AudioCodec,
		"shortest": "",
	}).OverWriteOutput()
	return c.runStream(ctx, stream)
}

func (c *Composer) muxReplace(ctx context.Context, videoPath, audioPath, outputPath string, exactDuration float64) error {
	video := ffmpeg.Input(videoPath)
	audio := ffmpeg.Input(audioPath)

	kwargs := ffmpeg.KwArgs{
		"c:v": "copy",
		"c:a": config.AudioCodec,
	}
	if exactDuration > 0 {
		kwargs["t"] = fmt.Sprintf("%.3f", exactDuration)
	} else {
		kwargs["shortest"] = ""
	}

	stream := ffmpeg.Output([]*ffmpeg.Stream{video.Video(), audio.Audio()}, outputPath, kwargs).
		OverWriteOutput()
	return c.runStream(ctx, stream)
}

func (c *Composer) muxPadThenReplace(ctx context.Context, videoPath, audioPath, outputPath string, videoDuration float64) error {
	if videoDuration == 0 {
		p, err := c.probe(videoPath)
		if err != nil {
			return fmt.Errorf("cannot determine video duration: %w", err)
		}
		videoDuration = p.Duration
	}

	audioDuration := 0.0
	if p, err := c.probe(audioPath); err != nil {
		log.Printf("[MediaComposer] Could not probe audio %s: %v", filepath.Base(audioPath), err)
	} else {
		audioDuration = p.Duration
	}

	audioToUse := audioPath
	if audioDuration < videoDuration-config.AudioPadToleranceSeconds {
		log.Printf("[MediaComposer] Padding audio %.2fs -> %.2fs", audioDuration, videoDuration)
		padded := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_padded.wav"
		if err := c.PadAudio(ctx, audioPath, videoDuration, padded); err != nil {
			return err
		}
		defer os.Remove(padded)
		audioToUse = padded
	}

	return c.muxReplace(ctx, videoPath, audioToUse, outputPath, videoDuration)
}

// PadAudio appends silence until the track reaches targetDuration. Audio
// already longer than the target is left alone; trimming belongs to the
// muxing step's duration cap.
func (c *Composer) PadAudio(ctx context.Context, audioPath string, targetDuration float64, outputPath string) error {
	stream := ffmpeg.Input(audioPath).Output(outputPath, ffmpeg.KwArgs{
		"af":  fmt.Sprintf("apad=whole_dur=%.3f", targetDuration),
		"c:a": "pcm_s16le",
	}).OverWriteOutput()
	if err := c.runStream(ctx, stream); err != nil {
		return fmt.Errorf("audio padding failed: %w", err)
	}
	return nil
}

// AddTextOverlay burns a single line of text onto the video at the given
// position (top, center, or bottom).
func (c *Composer) AddTextOverlay(ctx context.Context, videoPath, text, position, outputPath string) error {
	positions := map[string]string{
		"top":    "x=(w-text_w)/2:y=50",
		"center": "x=(w-text_w)/2:y=(h-text_h)/2",
		"bottom": "x=(w-text_w)/2:y=h-text_h-50",
	}
	pos, ok := positions[position]
	if !ok {
		pos = positions["bottom"]
	}

	vf := fmt.Sprintf("drawtext=text='%s':fontsize=48:fontcolor=white:%s", escapeDrawtext(text), pos)
	stream := ffmpeg.Input(videoPath).Output(outputPath, ffmpeg.KwArgs{
		"vf":  vf,
		"c:a": "copy",
	}).OverWriteOutput()
	if err := c.runStream(ctx, stream); err != nil {
		return fmt.Errorf("text overlay failed: %w", err)
	}
	return nil
}

func escapeDrawtext(s string) string {
	return strings.NewReplacer("\\", "\\\\", "'", "\\'", ":", "\\:", "%", "\\%").Replace(s)
}
