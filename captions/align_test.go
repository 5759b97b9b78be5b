package captions

import (
	"context"
	"strings"
	"testing"
)

func TestSanitizeWordSegments(t *testing.T) {
	tests := []struct {
		name  string
		input []WordSegment
		want  []WordSegment
	}{
		{
			name:  "healthy segments untouched",
			input: []WordSegment{{"hello", 0, 400}, {"world", 400, 900}},
			want:  []WordSegment{{"hello", 0, 400}, {"world", 400, 900}},
		},
		{
			name:  "zero duration gets minimum",
			input: []WordSegment{{"hi", 0, 0}, {"there", 300, 600}},
			want:  []WordSegment{{"hi", 0, 50}, {"there", 300, 600}},
		},
		{
			name:  "repair capped at next word start",
			input: []WordSegment{{"hi", 0, 0}, {"there", 30, 600}},
			want:  []WordSegment{{"hi", 0, 30}, {"there", 30, 600}},
		},
		{
			name:  "next word at same millisecond nudges by one",
			input: []WordSegment{{"hi", 100, 100}, {"there", 100, 600}},
			want:  []WordSegment{{"hi", 100, 101}, {"there", 100, 600}},
		},
		{
			name:  "overlapping input caps against next start",
			input: []WordSegment{{"hi", 0, 0}, {"there", 0, 200}},
			want:  []WordSegment{{"hi", 0, 1}, {"there", 0, 200}},
		},
		{
			name:  "last word uncapped",
			input: []WordSegment{{"hello", 0, 400}, {"world", 400, 400}},
			want:  []WordSegment{{"hello", 0, 400}, {"world", 400, 450}},
		},
		{
			name:  "reversed timing repaired",
			input: []WordSegment{{"oops", 500, 200}},
			want:  []WordSegment{{"oops", 500, 550}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeWordSegments(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d segments, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSanitizeWordSegmentsInvariants(t *testing.T) {
	input := []WordSegment{
		{"a", 0, 0},
		{"b", 120, 120},
		{"c", 130, 130},
		{"d", 400, 380},
		{"e", 900, 900},
	}
	got := SanitizeWordSegments(input)

	for i, w := range got {
		if w.EndMs <= w.StartMs {
			t.Errorf("word %d %q has end %d <= start %d", i, w.Text, w.EndMs, w.StartMs)
		}
	}
	for i := 0; i < len(got)-1; i++ {
		if got[i].EndMs > got[i+1].StartMs {
			t.Errorf("repair introduced overlap: word %d ends %d after word %d starts %d",
				i, got[i].EndMs, i+1, got[i+1].StartMs)
		}
	}
	// input slice must not be mutated
	if input[0].EndMs != 0 {
		t.Errorf("input slice was mutated")
	}
}

func TestSplitIntoPhrases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		want     []string
	}{
		{
			name:     "english sentence boundaries",
			text:     "Hello there! How are you? I am fine.",
			language: "English",
			want:     []string{"Hello there!", "How are you?", "I am fine."},
		},
		{
			name:     "semicolon breaks",
			text:     "First part; second part",
			language: "English",
			want:     []string{"First part;", "second part"},
		},
		{
			name:     "commas kept in short english phrases",
			text:     "One, two, three.",
			language: "English",
			want:     []string{"One, two, three."},
		},
		{
			name:     "chinese fullwidth terminals",
			text:     "你好！今天天气不错。",
			language: "zh",
			want:     []string{"你好！", "今天天气不错。"},
		},
		{
			name:     "long chinese clause splits on comma",
			text:     "这是一个非常非常非常长的句子，它需要被切分开，才能放进竖屏字幕。",
			language: "zh",
			want:     []string{"这是一个非常非常非常长的句子，", "它需要被切分开，", "才能放进竖屏字幕。"},
		},
		{
			name:     "short chinese clause keeps comma",
			text:     "你好，朋友。",
			language: "zh",
			want:     []string{"你好，朋友。"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIntoPhrases(tt.text, tt.language)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("phrase %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGroupIntoPhrases(t *testing.T) {
	text := "Hello world. Goodbye now."
	words := []WordSegment{
		{"Hello", 0, 400},
		{"world", 400, 900},
		{"Goodbye", 1000, 1500},
		{"now", 1500, 1800},
	}

	segments := GroupIntoPhrases(words, text, "English")
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].StartMs != 0 || segments[0].EndMs != 900 {
		t.Errorf("first segment span = [%d,%d], want [0,900]", segments[0].StartMs, segments[0].EndMs)
	}
	if segments[1].StartMs != 1000 || segments[1].EndMs != 1800 {
		t.Errorf("second segment span = [%d,%d], want [1000,1800]", segments[1].StartMs, segments[1].EndMs)
	}
	if len(segments[0].Words) != 2 || len(segments[1].Words) != 2 {
		t.Errorf("word counts = %d,%d, want 2,2", len(segments[0].Words), len(segments[1].Words))
	}
}

func TestGroupIntoPhrasesConservation(t *testing.T) {
	text := "One two three. Four five."
	words := []WordSegment{
		{"One", 0, 100},
		{"two", 100, 200},
		{"three", 200, 300},
		{",", 300, 300}, // punctuation-only unit from the aligner
		{"Four", 400, 500},
		{"five", 500, 600},
	}

	segments := GroupIntoPhrases(words, text, "English")

	seen := map[string]int{}
	total := 0
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			t.Errorf("segment %q emitted with zero words", seg.Text)
		}
		for _, w := range seg.Words {
			seen[w.Text]++
			total++
		}
	}
	if total > len(words) {
		t.Errorf("assigned %d words, more than %d input words", total, len(words))
	}
	for text, n := range seen {
		if n > 1 {
			t.Errorf("word %q assigned to %d phrases", text, n)
		}
	}
	if seen[","] != 0 {
		t.Errorf("punctuation-only unit was assigned to a phrase")
	}
}

func TestGroupIntoPhrasesDropsEmptyPhrases(t *testing.T) {
	// aligner only covered the first sentence
	text := "Hello world. Nothing aligned here."
	words := []WordSegment{
		{"Hello", 0, 400},
		{"world", 400, 900},
	}

	segments := GroupIntoPhrases(words, text, "English")
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if !strings.HasPrefix(segments[0].Text, "Hello") {
		t.Errorf("unexpected segment text %q", segments[0].Text)
	}
}

// fakeAligner returns canned units per audio path.
type fakeAligner struct {
	units map[string][]AlignedUnit
	calls int
	err   error
}

func (f *fakeAligner) Align(_ context.Context, audioPath, _, _ string) ([]AlignedUnit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.units[audioPath], nil
}

// fakeSegmenter splits on a fixed word list.
type fakeSegmenter struct{ words []string }

func (f *fakeSegmenter) Segment(string) []string { return f.words }

func TestAlignAudioWordLevel(t *testing.T) {
	aligner := &fakeAligner{units: map[string][]AlignedUnit{
		"a.wav": {
			{Text: "Hello", StartSec: 0.0, EndSec: 0.4},
			{Text: "world", StartSec: 0.4, EndSec: 0.4}, // degenerate
		},
	}}
	ca := NewCaptionAligner(aligner, nil)

	segments, err := ca.AlignAudio(context.Background(), "a.wav", "Hello world", "English", false)
	if err != nil {
		t.Fatalf("AlignAudio: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[1].EndMs <= segments[1].StartMs {
		t.Errorf("degenerate word not sanitized: %+v", segments[1])
	}
	for _, seg := range segments {
		if len(seg.Words) != 1 {
			t.Errorf("word-level segment has %d words", len(seg.Words))
		}
	}
}

func TestAlignAudioChineseRegroup(t *testing.T) {
	aligner := &fakeAligner{units: map[string][]AlignedUnit{
		"zh.wav": {
			{Text: "你", StartSec: 0.0, EndSec: 0.2},
			{Text: "好", StartSec: 0.2, EndSec: 0.4},
			{Text: "，", StartSec: 0.4, EndSec: 0.4},
			{Text: "世", StartSec: 0.5, EndSec: 0.7},
			{Text: "界", StartSec: 0.7, EndSec: 0.9},
		},
	}}
	seg := &fakeSegmenter{words: []string{"你好", "世界"}}
	ca := NewCaptionAligner(aligner, seg)

	segments, err := ca.AlignAudio(context.Background(), "zh.wav", "你好，世界", "zh", false)
	if err != nil {
		t.Fatalf("AlignAudio: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "你好" || segments[0].StartMs != 0 || segments[0].EndMs != 400 {
		t.Errorf("first word = %+v", segments[0])
	}
	if segments[1].Text != "世界" || segments[1].StartMs != 500 || segments[1].EndMs != 900 {
		t.Errorf("second word = %+v", segments[1])
	}
}

func TestAlignAudioChineseSegmenterFailure(t *testing.T) {
	aligner := &fakeAligner{units: map[string][]AlignedUnit{
		"zh.wav": {
			{Text: "你", StartSec: 0.0, EndSec: 0.2},
			{Text: "好", StartSec: 0.2, EndSec: 0.4},
			{Text: "世", StartSec: 0.5, EndSec: 0.7},
			{Text: "界", StartSec: 0.7, EndSec: 0.9},
		},
	}}
	// segmentation sidecar down, segmenter yields nothing
	seg := &fakeSegmenter{words: nil}
	ca := NewCaptionAligner(aligner, seg)

	segments, err := ca.AlignAudio(context.Background(), "zh.wav", "你好世界", "zh", false)
	if err != nil {
		t.Fatalf("AlignAudio: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("got %d captions, want 4 character-level captions", len(segments))
	}
	if segments[0].Text != "你" || segments[3].Text != "界" {
		t.Errorf("fallback captions = %+v, want character-level units", segments)
	}
}

func TestAlignDialogueLinesOffsets(t *testing.T) {
	aligner := &fakeAligner{units: map[string][]AlignedUnit{
		"line1.wav": {
			{Text: "Hello", StartSec: 0.0, EndSec: 0.5},
			{Text: "there", StartSec: 0.5, EndSec: 1.2},
		},
		"line2.wav": {
			{Text: "General", StartSec: 0.0, EndSec: 0.6},
			{Text: "Kenobi", StartSec: 0.6, EndSec: 1.4},
		},
	}}
	ca := NewCaptionAligner(aligner, nil)

	segments, err := ca.AlignDialogueLines(context.Background(),
		[]string{"line1.wav", "line2.wav"},
		[]string{"Hello there", "General Kenobi"},
		"English")
	if err != nil {
		t.Fatalf("AlignDialogueLines: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("got %d segments, want 4", len(segments))
	}

	// captions from the second line start at or after the first line's end
	firstLineEnd := segments[1].EndMs
	if firstLineEnd != 1200 {
		t.Errorf("first line end = %d, want 1200", firstLineEnd)
	}
	for _, seg := range segments[2:] {
		if seg.StartMs < firstLineEnd {
			t.Errorf("second-line caption %+v starts before first line end %d", seg, firstLineEnd)
		}
	}
	if segments[3].EndMs != 1200+1400 {
		t.Errorf("last caption end = %d, want %d", segments[3].EndMs, 1200+1400)
	}
}

func TestAlignDialogueLinesMismatch(t *testing.T) {
	ca := NewCaptionAligner(&fakeAligner{}, nil)
	_, err := ca.AlignDialogueLines(context.Background(), []string{"a.wav"}, nil, "English")
	if err == nil {
		t.Fatal("expected error for mismatched inputs")
	}
}

func TestEstimateDurationFromDialogue(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 4},
		{5, 4},  // 2.0s
		{10, 4}, // 4.0s
		{12, 6}, // 4.8s
		{15, 6}, // 6.0s
		{18, 8}, // 7.2s
		{40, 8}, // 16s, clamped to max supported
	}
	for _, tt := range tests {
		text := strings.TrimSpace(strings.Repeat("word ", tt.words))
		if got := EstimateDurationFromDialogue(text); got != tt.want {
			t.Errorf("%d words: got %d, want %d", tt.words, got, tt.want)
		}
	}
}
