package media

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mangabeat/config"
)

// Expectations describes what a finished file should look like.
type Expectations struct {
	// Duration in seconds, checked within DurationTolerance when non-nil.
	Duration *float64
	// Width/Height checked exactly when both are non-zero.
	Width  int
	Height int
	// RequireAudio fails verification when no audio stream is present.
	RequireAudio bool
	// MinFileSize in bytes; zero means config.MinOutputFileSize.
	MinFileSize int64
	// DurationTolerance in seconds; zero means config.DurationToleranceSeconds.
	DurationTolerance float64
}

// VerificationResult reports every check that ran and every failure.
// Checks never short-circuit: a caller fixing a resolution mismatch wants
// to know in the same report whether duration also drifted.
type VerificationResult struct {
	Passed         bool
	Checks         []string
	Failures       []string
	ActualDuration float64
	ActualWidth    int
	ActualHeight   int
	HasVideo       bool
	HasAudio       bool
	FileSizeBytes  int64
}

// verifyProbe is swapped out in tests.
var verifyProbe = Probe

// Verify inspects a finished media file against the expectations. A probe
// failure degrades to zero-valued metadata so every expectation category
// still shows up in the report.
func Verify(path string, exp Expectations) VerificationResult {
	result := VerificationResult{Passed: true}

	minSize := exp.MinFileSize
	if minSize == 0 {
		minSize = config.MinOutputFileSize
	}
	tolerance := exp.DurationTolerance
	if tolerance == 0 {
		tolerance = config.DurationToleranceSeconds
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		result.Passed = false
		result.Failures = append(result.Failures, fmt.Sprintf("File not found: %s", path))
	} else {
		result.Checks = append(result.Checks, "file_exists")
		result.FileSizeBytes = info.Size()
		if result.FileSizeBytes < minSize {
			result.Passed = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("File too small: %d bytes (min %d)", result.FileSizeBytes, minSize))
		} else {
			result.Checks = append(result.Checks, fmt.Sprintf("file_size=%d", result.FileSizeBytes))
		}
	}

	probe, probeErr := verifyProbe(path)
	if probeErr != nil && statErr == nil {
		result.Failures = append(result.Failures, fmt.Sprintf("probe failed: %v", probeErr))
		result.Passed = false
	}
	result.HasVideo = probe.HasVideo
	result.HasAudio = probe.HasAudio
	result.ActualWidth = probe.Width
	result.ActualHeight = probe.Height
	result.ActualDuration = probe.Duration

	if !result.HasVideo {
		result.Passed = false
		result.Failures = append(result.Failures, "No video stream found")
	} else {
		result.Checks = append(result.Checks, "has_video_stream")
	}

	if exp.RequireAudio && !result.HasAudio {
		result.Passed = false
		result.Failures = append(result.Failures, "No audio stream found (required)")
	} else if result.HasAudio {
		result.Checks = append(result.Checks, "has_audio_stream")
	}

	if exp.Duration != nil {
		diff := result.ActualDuration - *exp.Duration
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			result.Passed = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("Duration mismatch: expected %.1fs, got %.1fs (tolerance %.1fs)",
					*exp.Duration, result.ActualDuration, tolerance))
		} else {
			result.Checks = append(result.Checks, fmt.Sprintf("duration=%.1fs", result.ActualDuration))
		}
	}

	if exp.Width > 0 && exp.Height > 0 {
		if result.ActualWidth != exp.Width || result.ActualHeight != exp.Height {
			result.Passed = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("Resolution mismatch: expected %dx%d, got %dx%d",
					exp.Width, exp.Height, result.ActualWidth, result.ActualHeight))
		} else {
			result.Checks = append(result.Checks, fmt.Sprintf("resolution=%dx%d", result.ActualWidth, result.ActualHeight))
		}
	}

	if result.Passed {
		log.Printf("[OutputVerifier] PASSED: %s (%d checks)", filepath.Base(path), len(result.Checks))
	} else {
		log.Printf("[OutputVerifier] FAILED: %s: %v", filepath.Base(path), result.Failures)
	}
	return result
}

// HasResolutionMismatch reports whether the result contains a resolution
// failure, the one failure kind with a deterministic repair (re-encode to
// target).
func HasResolutionMismatch(result VerificationResult) bool {
	if result.Passed {
		return false
	}
	for _, f := range result.Failures {
		if strings.HasPrefix(f, "Resolution mismatch") {
			return true
		}
	}
	return false
}
