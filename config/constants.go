package config

import "time"

const (
	// Output video configuration (9:16 vertical)
	TargetWidth  = 1080
	TargetHeight = 1920
	VideoCodec   = "libx264"
	AudioCodec   = "aac"
	AudioBitrate = "192k"
	VideoPreset  = "fast"

	// Per-clip animation settings
	DefaultClipDurationSeconds = 4
	MaxConcurrentClips         = 3

	// Retry policy for external generation calls
	MaxGenerationAttempts = 3
	RetryDelay            = 2 * time.Second

	// Verification thresholds
	DurationToleranceSeconds = 2.0
	MinOutputFileSize        = 10_000

	// Audio sync: pad audio with silence when it is shorter than the video
	// by more than this tolerance
	AudioPadToleranceSeconds = 0.1

	// Panel sequencing limits
	MinPanelCount     = 2
	MaxPanelCount     = 6
	MaxCharacterCount = 2

	// Directory paths
	OutputDir = "output"
)

// SupportedClipDurations lists the clip lengths the video generator accepts.
var SupportedClipDurations = []int{4, 6, 8}

// IsSupportedClipDuration reports whether the video generator accepts d seconds.
func IsSupportedClipDuration(d int) bool {
	for _, s := range SupportedClipDurations {
		if d == s {
			return true
		}
	}
	return false
}
