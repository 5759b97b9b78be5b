package providers

import "os"

// Services bundles the generation sidecars a deployment talks to.
type Services struct {
	Images *ImageService
	Video  *VideoService
	Speech *SpeechService
	Music  *MusicService
	Align  *AlignService
}

// FromEnv builds service clients from *_SERVICE_URL environment
// variables, defaulting to the local sidecar ports.
func FromEnv() *Services {
	return &Services{
		Images: NewImageService(envOr("IMAGE_SERVICE_URL", "http://localhost:7801")),
		Video:  NewVideoService(envOr("VIDEO_SERVICE_URL", "http://localhost:7802")),
		Speech: NewSpeechService(envOr("TTS_SERVICE_URL", "http://localhost:7803")),
		Music:  NewMusicService(envOr("MUSIC_SERVICE_URL", "http://localhost:7804")),
		Align:  NewAlignService(envOr("ALIGN_SERVICE_URL", "http://localhost:7805")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
