package captions

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"mangabeat/config"
	"mangabeat/media"
)

// RenderOptions controls the caption burn-in pass.
type RenderOptions struct {
	// Width/Height scale the video before burn-in; zero keeps the source size.
	Width  int
	Height int
	// AudioPath replaces the video's audio track when set.
	AudioPath string
	// AudioVolume applies to AudioPath; zero means full volume.
	AudioVolume float64
}

// Renderer burns karaoke captions onto a video track.
type Renderer struct {
	runStream func(ctx context.Context, stream *ffmpeg.Stream) error
}

func NewRenderer() *Renderer {
	return &Renderer{runStream: media.RunStream}
}

// RenderWithCaptions writes the segments to a temporary ASS script and
// burns them onto videoPath, re-encoding to outputPath. The script is
// removed whether or not the encode succeeds.
func (r *Renderer) RenderWithCaptions(ctx context.Context, videoPath string, segments []CaptionSegment, outputPath string, opts RenderOptions) error {
	if len(segments) == 0 {
		return fmt.Errorf("no caption segments to render")
	}

	width, height := opts.Width, opts.Height
	if width == 0 || height == 0 {
		width, height = config.TargetWidth, config.TargetHeight
	}

	assFile, err := os.CreateTemp("", "captions_*.ass")
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	assPath := assFile.Name()
	defer os.Remove(assPath)

	if _, err := assFile.WriteString(GenerateASS(segments, width, height)); err != nil {
		assFile.Close()
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	if err := assFile.Close(); err != nil {
		return err
	}

	video := ffmpeg.Input(videoPath).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", width, height)}).
		Filter("pad", ffmpeg.Args{fmt.Sprintf("%d:%d:(ow-iw)/2:(oh-ih)/2:black", width, height)}).
		Filter("ass", ffmpeg.Args{assPathForFilter(assPath)})

	kwargs := ffmpeg.KwArgs{
		"c:v":             config.VideoCodec,
		"preset":          config.VideoPreset,
		"crf":             "23",
		"pix_fmt":         "yuv420p",
		"color_primaries": "bt709",
		"color_trc":       "bt709",
		"colorspace":      "bt709",
	}

	streams := []*ffmpeg.Stream{video}
	if opts.AudioPath != "" {
		audio := ffmpeg.Input(opts.AudioPath).Audio()
		if opts.AudioVolume > 0 && opts.AudioVolume != 1.0 {
			audio = audio.Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", opts.AudioVolume)})
		}
		streams = append(streams, audio)
		kwargs["c:a"] = config.AudioCodec
		kwargs["b:a"] = config.AudioBitrate
		kwargs["shortest"] = ""
	} else {
		kwargs["c:a"] = "copy"
	}

	log.Printf("[CaptionRenderer] Burning %d caption segments onto %s", len(segments), filepath.Base(videoPath))
	out := ffmpeg.Output(streams, outputPath, kwargs).OverWriteOutput()
	if err := r.runStream(ctx, out); err != nil {
		return fmt.Errorf("caption burn-in failed: %w", err)
	}
	return nil
}

// assPathForFilter escapes the subtitle path for use inside a filter graph.
func assPathForFilter(path string) string {
	p := filepath.ToSlash(path)
	return strings.ReplaceAll(p, ":", "\\:")
}
