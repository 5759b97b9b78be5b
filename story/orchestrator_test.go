package story

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mangabeat/captions"
	"mangabeat/manga"
	"mangabeat/media"
	"mangabeat/music"
)

type fakeClips struct {
	mu         sync.Mutex
	calls      map[int]int
	failAlways map[int]bool
	failFirst  map[int]int
}

func newFakeClips() *fakeClips {
	return &fakeClips{calls: map[int]int{}, failAlways: map[int]bool{}, failFirst: map[int]int{}}
}

func (f *fakeClips) AnimatePanel(_ context.Context, _ string, durationSeconds, clipIndex int) (string, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[clipIndex]++
	if f.failAlways[clipIndex] || f.calls[clipIndex] <= f.failFirst[clipIndex] {
		return "", 0, fmt.Errorf("model overloaded")
	}
	return fmt.Sprintf("clip_%d.mp4", clipIndex), float64(durationSeconds), nil
}

type fakeTTS struct {
	mu       sync.Mutex
	designs  int
	synths   int
	synthErr error
}

func (f *fakeTTS) DesignVoice(_ context.Context, name, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.designs++
	return "voice-" + name, nil
}

func (f *fakeTTS) Synthesize(_ context.Context, _, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synths++
	if f.synthErr != nil {
		return "", f.synthErr
	}
	return fmt.Sprintf("audio_%d.wav", f.synths), nil
}

// wordAligner times each transcript word at 400ms spacing.
type wordAligner struct{}

func (wordAligner) Align(_ context.Context, _, text, _ string) ([]captions.AlignedUnit, error) {
	var units []captions.AlignedUnit
	for i, w := range strings.Fields(text) {
		start := float64(i) * 0.4
		units = append(units, captions.AlignedUnit{Text: w, StartSec: start, EndSec: start + 0.35})
	}
	return units, nil
}

type concatCall struct {
	clips []string
	out   string
	force bool
}

type muxCall struct {
	video, audio, out string
	opts              media.MuxOptions
}

type fakeAssembler struct {
	mu      sync.Mutex
	concats []concatCall
	muxes   []muxCall
	muxErr  error
}

func (f *fakeAssembler) Concatenate(_ context.Context, clips []string, out string, opts media.ConcatOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concats = append(f.concats, concatCall{append([]string(nil), clips...), out, opts.ForceNormalize})
	return os.WriteFile(out, []byte("video"), 0o644)
}

func (f *fakeAssembler) Mux(_ context.Context, video, audio, out string, opts media.MuxOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muxes = append(f.muxes, muxCall{video, audio, out, opts})
	if f.muxErr != nil {
		return f.muxErr
	}
	return os.WriteFile(out, []byte("muxed"), 0o644)
}

type renderCall struct {
	video    string
	segments []captions.CaptionSegment
	out      string
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
}

func (f *fakeRenderer) RenderWithCaptions(_ context.Context, video string, segments []captions.CaptionSegment, out string, _ captions.RenderOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, renderCall{video, segments, out})
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("captioned"), 0o644)
}

type fakeMusic struct {
	path      string
	err       error
	block     bool
	cancelled atomic.Bool
}

func (f *fakeMusic) Compose(ctx context.Context, _ music.CompositionPlan, _ string) (string, error) {
	if f.block {
		select {
		case <-ctx.Done():
			f.cancelled.Store(true)
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "", fmt.Errorf("compose timed out")
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type verifyRecorder struct {
	mu      sync.Mutex
	calls   []media.Expectations
	results []media.VerificationResult
}

func (v *verifyRecorder) verify(_ string, exp media.Expectations) media.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, exp)
	if len(v.results) > 0 {
		r := v.results[0]
		if len(v.results) > 1 {
			v.results = v.results[1:]
		}
		return r
	}
	r := media.VerificationResult{Passed: true, HasVideo: true, HasAudio: true,
		ActualWidth: exp.Width, ActualHeight: exp.Height}
	if exp.Duration != nil {
		r.ActualDuration = *exp.Duration
	}
	return r
}

func newTestOrchestrator(t *testing.T, clips ClipGenerator, tts SpeechSynthesizer, gen music.Generator) (*Orchestrator, *fakeAssembler, *fakeRenderer, *verifyRecorder) {
	t.Helper()
	fa := &fakeAssembler{}
	fr := &fakeRenderer{}
	vr := &verifyRecorder{}
	o := NewOrchestrator(clips, tts, gen, captions.NewCaptionAligner(wordAligner{}, nil), t.TempDir())
	o.composer = fa
	o.renderer = fr
	o.retryDelay = 0
	o.verify = vr.verify
	return o, fa, fr, vr
}

func testPanels(dialogues ...string) []manga.Panel {
	panels := make([]manga.Panel, len(dialogues))
	for i, d := range dialogues {
		panels[i] = manga.Panel{
			Index:     i + 1,
			StoryBeat: fmt.Sprintf("beat %d", i+1),
			Dialogue:  d,
			ImagePath: fmt.Sprintf("panel_%d.png", i+1),
		}
	}
	return panels
}

func TestAnimateDialoguePipeline(t *testing.T) {
	o, fa, fr, vr := newTestOrchestrator(t, newFakeClips(), &fakeTTS{}, nil)

	result, err := o.AnimateDialogue(context.Background(), DialogueRequest{
		Panels: testPanels("Aiko: hello there", ""),
	})
	if err != nil {
		t.Fatalf("AnimateDialogue: %v", err)
	}

	if result.ClipCount != 2 || result.ClipsAttempted != 2 || result.ClipsFailed != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/2/0", result.ClipCount, result.ClipsAttempted, result.ClipsFailed)
	}
	if !result.HasAudio || !result.HasCaptions {
		t.Errorf("HasAudio=%v HasCaptions=%v, want both true", result.HasAudio, result.HasCaptions)
	}

	// panel 1 got voiced + captioned; panel 2 went in raw
	if len(fa.concats) != 1 || len(fa.concats[0].clips) != 2 {
		t.Fatalf("concats = %+v", fa.concats)
	}
	if !strings.Contains(fa.concats[0].clips[0], "captioned") {
		t.Errorf("first concat clip = %q, want captioned variant", fa.concats[0].clips[0])
	}
	if fa.concats[0].clips[1] != "clip_1.mp4" {
		t.Errorf("second concat clip = %q, want raw clip", fa.concats[0].clips[1])
	}

	if len(fa.muxes) != 1 || fa.muxes[0].opts.Policy != media.MuxPadThenReplace {
		t.Errorf("muxes = %+v, want one pad-then-replace", fa.muxes)
	}

	if len(fr.calls) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(fr.calls))
	}
	if got := fr.calls[0].segments; len(got) != 2 || got[0].Speaker != "Aiko" {
		t.Errorf("caption segments = %+v", got)
	}

	// both panels default to 4s clips
	if len(vr.calls) != 1 || vr.calls[0].Duration == nil || *vr.calls[0].Duration != 8.0 {
		t.Errorf("verify expectations = %+v", vr.calls)
	}
	if !vr.calls[0].RequireAudio {
		t.Error("verification did not require audio for a dialogue story")
	}
}

func TestAnimateDialogueRetriesClipGeneration(t *testing.T) {
	clips := newFakeClips()
	clips.failFirst[0] = 2
	o, _, _, _ := newTestOrchestrator(t, clips, &fakeTTS{}, nil)

	result, err := o.AnimateDialogue(context.Background(), DialogueRequest{Panels: testPanels("")})
	if err != nil {
		t.Fatalf("AnimateDialogue: %v", err)
	}
	if clips.calls[0] != 3 {
		t.Errorf("clip attempted %d times, want 3", clips.calls[0])
	}
	if result.ClipsFailed != 0 {
		t.Errorf("ClipsFailed = %d, want 0", result.ClipsFailed)
	}
}

func TestAnimateDialogueAllClipsFailed(t *testing.T) {
	clips := newFakeClips()
	clips.failAlways[0] = true
	o, _, _, _ := newTestOrchestrator(t, clips, &fakeTTS{}, nil)

	_, err := o.AnimateDialogue(context.Background(), DialogueRequest{Panels: testPanels("")})
	if err == nil || !strings.Contains(err.Error(), "clips failed") {
		t.Fatalf("err = %v, want all-clips-failed", err)
	}
	if clips.calls[0] != 3 {
		t.Errorf("clip attempted %d times, want 3", clips.calls[0])
	}
}

func TestAnimateDialoguePartialClipFailure(t *testing.T) {
	clips := newFakeClips()
	clips.failAlways[1] = true
	o, fa, _, vr := newTestOrchestrator(t, clips, &fakeTTS{}, nil)

	result, err := o.AnimateDialogue(context.Background(), DialogueRequest{
		Panels: testPanels("", "", ""),
	})
	if err != nil {
		t.Fatalf("AnimateDialogue: %v", err)
	}
	if result.ClipCount != 2 || result.ClipsAttempted != 3 || result.ClipsFailed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/3/1", result.ClipCount, result.ClipsAttempted, result.ClipsFailed)
	}
	want := []string{"clip_0.mp4", "clip_2.mp4"}
	if len(fa.concats) != 1 || fa.concats[0].clips[0] != want[0] || fa.concats[0].clips[1] != want[1] {
		t.Errorf("concat clips = %v, want %v", fa.concats[0].clips, want)
	}
	// only surviving clips count toward the expected duration
	if *vr.calls[0].Duration != 8.0 {
		t.Errorf("expected duration = %.1f, want 8.0", *vr.calls[0].Duration)
	}
}

func TestAnimateDialogueTTSFailureKeepsSilentClip(t *testing.T) {
	tts := &fakeTTS{synthErr: fmt.Errorf("tts down")}
	o, fa, fr, _ := newTestOrchestrator(t, newFakeClips(), tts, nil)

	result, err := o.AnimateDialogue(context.Background(), DialogueRequest{
		Panels: testPanels("Aiko: hello there"),
	})
	if err != nil {
		t.Fatalf("AnimateDialogue: %v", err)
	}
	if tts.synths != 3 {
		t.Errorf("synthesize attempted %d times, want 3", tts.synths)
	}
	if result.ClipCount != 1 || result.HasCaptions {
		t.Errorf("result = %+v, want 1 silent uncaptioned clip", result)
	}
	if len(fa.muxes) != 0 || len(fr.calls) != 0 {
		t.Errorf("muxes=%d renders=%d, want none", len(fa.muxes), len(fr.calls))
	}
}

func TestAnimateDialogueResolutionRepair(t *testing.T) {
	o, fa, _, vr := newTestOrchestrator(t, newFakeClips(), &fakeTTS{}, nil)
	vr.results = []media.VerificationResult{
		{Passed: false, HasVideo: true, ActualWidth: 720, ActualHeight: 1280,
			Failures: []string{"Resolution mismatch: expected 1080x1920, got 720x1280"}},
		{Passed: true, HasVideo: true, ActualWidth: 1080, ActualHeight: 1920, ActualDuration: 4},
	}

	result, err := o.AnimateDialogue(context.Background(), DialogueRequest{Panels: testPanels("")})
	if err != nil {
		t.Fatalf("AnimateDialogue: %v", err)
	}
	if len(fa.concats) != 2 {
		t.Fatalf("concats = %d, want repair re-concat", len(fa.concats))
	}
	if fa.concats[0].force || !fa.concats[1].force {
		t.Errorf("force flags = %v/%v, want false/true", fa.concats[0].force, fa.concats[1].force)
	}
	if len(vr.calls) != 2 {
		t.Errorf("verified %d times, want 2", len(vr.calls))
	}
	if !result.Verification.Passed {
		t.Error("repaired result did not pass verification")
	}
}

const testLyrics = `[Verse 1]
Look what I found
A map in the sand
[Verse 2]
Follow the trail
Across the land
[Chorus]
We sail tonight
Under the stars
[Outro]
Home at last
The treasure is ours`

func TestAnimateMusicPipeline(t *testing.T) {
	gen := &fakeMusic{path: "song.mp3"}
	o, fa, fr, vr := newTestOrchestrator(t, newFakeClips(), &fakeTTS{}, gen)

	result, err := o.AnimateMusic(context.Background(), MusicRequest{
		Panels:    testPanels("", "", "", ""),
		Lyrics:    testLyrics,
		StyleTags: "upbeat pop, ukulele",
	})
	if err != nil {
		t.Fatalf("AnimateMusic: %v", err)
	}

	if len(fa.concats) != 1 || len(fa.concats[0].clips) != 4 {
		t.Fatalf("concats = %+v", fa.concats)
	}
	if !strings.Contains(fa.concats[0].out, "story_concat") {
		t.Errorf("concat target = %q, want intermediate file before mux", fa.concats[0].out)
	}
	if len(fa.muxes) != 1 || fa.muxes[0].opts.Policy != media.MuxReplace || fa.muxes[0].audio != "song.mp3" {
		t.Errorf("muxes = %+v, want one replace with song.mp3", fa.muxes)
	}

	if len(fr.calls) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(fr.calls))
	}
	segs := fr.calls[0].segments
	if len(segs) != 8 {
		t.Errorf("lyric segments = %d, want 8", len(segs))
	}
	for _, s := range segs {
		if s.Speaker != "♪" {
			t.Errorf("lyric speaker = %q", s.Speaker)
		}
	}

	if result.ClipCount != 4 || !result.HasAudio || !result.HasCaptions {
		t.Errorf("result = %+v", result)
	}
	if *vr.calls[0].Duration != 16.0 || !vr.calls[0].RequireAudio {
		t.Errorf("verify expectations = %+v", vr.calls[0])
	}
}

func TestAnimateMusicFailureContinuesSilent(t *testing.T) {
	gen := &fakeMusic{err: fmt.Errorf("music service down")}
	o, fa, fr, vr := newTestOrchestrator(t, newFakeClips(), &fakeTTS{}, gen)

	result, err := o.AnimateMusic(context.Background(), MusicRequest{
		Panels: testPanels("", ""),
		Lyrics: testLyrics,
	})
	if err != nil {
		t.Fatalf("AnimateMusic: %v", err)
	}
	if len(fa.muxes) != 0 {
		t.Errorf("muxes = %+v, want none without music", fa.muxes)
	}
	if len(fa.concats) != 1 || strings.Contains(fa.concats[0].out, "story_concat") {
		t.Errorf("concat should target the final path directly: %+v", fa.concats)
	}
	if result.HasAudio || result.HasCaptions {
		t.Errorf("result = %+v, want silent uncaptioned video", result)
	}
	if len(fr.calls) != 0 {
		t.Errorf("renderer called %d times, want 0", len(fr.calls))
	}
	if vr.calls[0].RequireAudio {
		t.Error("verification required audio after music failed")
	}
}

func TestAnimateMusicVideoFailureCancelsMusic(t *testing.T) {
	clips := newFakeClips()
	clips.failAlways[0] = true
	clips.failAlways[1] = true
	gen := &fakeMusic{block: true}
	o, _, _, _ := newTestOrchestrator(t, clips, &fakeTTS{}, gen)

	_, err := o.AnimateMusic(context.Background(), MusicRequest{
		Panels: testPanels("", ""),
		Lyrics: testLyrics,
	})
	if err == nil || !strings.Contains(err.Error(), "clips failed") {
		t.Fatalf("err = %v, want all-clips-failed", err)
	}
	if !gen.cancelled.Load() {
		t.Error("music composition was not cancelled")
	}
}
