package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mangabeat/manga"
	"mangabeat/music"
)

func TestVideoServiceAnimatePanel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/animate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req animateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.ImagePath != "panel_1.png" || req.DurationSeconds != 4 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(animateResponse{VideoPath: "clip_0.mp4", DurationSeconds: 4.1})
	}))
	defer srv.Close()

	path, dur, err := NewVideoService(srv.URL).AnimatePanel(context.Background(), "panel_1.png", 4, 0)
	if err != nil {
		t.Fatalf("AnimatePanel: %v", err)
	}
	if path != "clip_0.mp4" || dur != 4.1 {
		t.Errorf("got %q %.1f", path, dur)
	}
}

func TestVideoServiceErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(animateResponse{Error: "model overloaded"})
	}))
	defer srv.Close()

	_, _, err := NewVideoService(srv.URL).AnimatePanel(context.Background(), "p.png", 4, 0)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("err = %v", err)
	}
}

func TestVideoServiceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := NewVideoService(srv.URL).AnimatePanel(context.Background(), "p.png", 4, 0)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v", err)
	}
}

func TestImageServiceRoundTripsBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.References) != 1 {
			t.Fatalf("references = %d", len(req.References))
		}
		decoded, err := base64.StdEncoding.DecodeString(req.References[0].Data)
		if err != nil || string(decoded) != "ref-bytes" {
			t.Errorf("reference data = %q, %v", decoded, err)
		}
		json.NewEncoder(w).Encode(generateImageResponse{
			Data: base64.StdEncoding.EncodeToString([]byte("panel-bytes")),
		})
	}))
	defer srv.Close()

	data, err := NewImageService(srv.URL).Generate(context.Background(),
		[]manga.ReferenceImage{{Label: "char", Data: []byte("ref-bytes"), MIMEType: "image/png"}},
		"draw a panel")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(data) != "panel-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestMusicServiceSendsPlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req composeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Plan.Sections) != 2 || req.Plan.Sections[0].DurationMs != 4000 {
			t.Errorf("plan = %+v", req.Plan)
		}
		if !req.RespectSectionDurations {
			t.Error("request does not pin section durations")
		}
		json.NewEncoder(w).Encode(composeResponse{AudioPath: "song.mp3"})
	}))
	defer srv.Close()

	plan := music.CompositionPlan{Sections: []music.Section{
		{Name: "Verse 1", DurationMs: 4000},
		{Name: "Chorus", DurationMs: 4000},
	}}
	path, err := NewMusicService(srv.URL).Compose(context.Background(), plan, "upbeat pop")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if path != "song.mp3" {
		t.Errorf("path = %q", path)
	}
}

func TestAlignServiceDecodesSnakeCaseUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"units":[{"text":"Hello","start_sec":0.1,"end_sec":0.5}]}`))
	}))
	defer srv.Close()

	units, err := NewAlignService(srv.URL).Align(context.Background(), "a.wav", "Hello", "English")
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Text != "Hello" || units[0].StartSec != 0.1 || units[0].EndSec != 0.5 {
		t.Errorf("unit = %+v", units[0])
	}
}

func TestAlignServiceSegmentFailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if words := NewAlignService(srv.URL).Segment("你好世界"); words != nil {
		t.Errorf("words = %v, want nil on failure", words)
	}
}
