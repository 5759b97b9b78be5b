package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"mangabeat/api"
	"mangabeat/captions"
	"mangabeat/common"
	"mangabeat/config"
	"mangabeat/providers"
	"mangabeat/story"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	outputDir := config.OutputDir
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		outputDir = v
	}

	svcs := providers.FromEnv()
	aligner := captions.NewCaptionAligner(svcs.Align, svcs.Align)
	orchestrator := story.NewOrchestrator(svcs.Video, svcs.Speech, svcs.Music, aligner, outputDir)

	uploads := common.NewS3FromEnv(context.Background())
	server := api.NewServer(orchestrator, api.NewRunStoreFromEnv(), uploads)

	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  POST /api/stories/dialogue")
	log.Println("  POST /api/stories/music")
	log.Println("  GET  /api/stories/:id")
	log.Println("  GET  /api/stories/:id/events")

	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
