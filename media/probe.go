package media

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeResult holds the stream metadata of a media file.
type ProbeResult struct {
	Width    int
	Height   int
	Duration float64
	Codec    string
	HasVideo bool
	HasAudio bool
}

// probeRaw is swapped out in tests so no ffprobe binary is needed.
var probeRaw = func(path string) (string, error) {
	return ffmpeg.Probe(path)
}

// Probe inspects a media file with ffprobe. Errors are returned for the
// caller to log and act on; a malformed file is not fatal to a pipeline.
func Probe(path string) (ProbeResult, error) {
	raw, err := probeRaw(path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe failed for %s: %w", path, err)
	}

	var data struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return ProbeResult{}, fmt.Errorf("malformed probe output for %s: %w", path, err)
	}

	var res ProbeResult
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if !res.HasVideo {
				res.HasVideo = true
				res.Width = s.Width
				res.Height = s.Height
				res.Codec = s.CodecName
				res.Duration = parseSeconds(s.Duration)
			}
		case "audio":
			res.HasAudio = true
		}
	}
	// format duration is more reliable for concatenated files
	if d := parseSeconds(data.Format.Duration); d > 0 {
		res.Duration = d
	}
	return res, nil
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return d
}
