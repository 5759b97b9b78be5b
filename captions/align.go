package captions

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"unicode"

	"mangabeat/config"
)

// MinWordDurationMs is the shortest visible duration a word may have after
// sanitization. Karaoke rendering divides fill time by word duration, so a
// zero-length word would produce invisible or broken highlighting.
const MinWordDurationMs = 50

// Aligner is the external forced-alignment capability: given audio and its
// exact transcript it returns ordered timed units. For space-delimited
// languages units are words; for Chinese they are single characters.
type Aligner interface {
	Align(ctx context.Context, audioPath, text, language string) ([]AlignedUnit, error)
}

// WordSegmenter splits logographic text into words so character-level
// alignment units can be regrouped before phrase timing.
type WordSegmenter interface {
	Segment(text string) []string
}

// CaptionAligner turns (audio, transcript) pairs into timed caption segments.
type CaptionAligner struct {
	aligner   Aligner
	segmenter WordSegmenter
}

func NewCaptionAligner(aligner Aligner, segmenter WordSegmenter) *CaptionAligner {
	return &CaptionAligner{aligner: aligner, segmenter: segmenter}
}

// SanitizeWordSegments repairs degenerate word timings in place order. For
// every word with end_ms <= start_ms the end is moved to start_ms + 50,
// capped by the next word's original start; if the cap lands at or before
// the start (next word begins the same millisecond) the end is nudged to
// start_ms + 1. The last word is never capped.
func SanitizeWordSegments(words []WordSegment) []WordSegment {
	out := make([]WordSegment, len(words))
	copy(out, words)
	for i := range out {
		if out[i].EndMs > out[i].StartMs {
			continue
		}
		repaired := out[i].StartMs + MinWordDurationMs
		if i < len(out)-1 && words[i+1].StartMs < repaired {
			repaired = words[i+1].StartMs
		}
		if repaired <= out[i].StartMs {
			repaired = out[i].StartMs + 1
		}
		out[i].EndMs = repaired
	}
	return out
}

// terminal punctuation that always ends a phrase; fullwidth forms cover
// Chinese transcripts
const phraseTerminals = ".!?;。！？；"

const chineseClauseMaxRunes = 20

// SplitIntoPhrases splits a transcript into phrase strings on sentence
// boundaries. Chinese clauses longer than 20 characters are further split
// on commas so captions stay readable on a vertical frame.
func SplitIntoPhrases(text, language string) []string {
	var phrases []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(phraseTerminals, r) {
			if p := strings.TrimSpace(current.String()); p != "" {
				phrases = append(phrases, p)
			}
			current.Reset()
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		phrases = append(phrases, p)
	}

	if !isChinese(language) {
		return phrases
	}

	var out []string
	for _, p := range phrases {
		if len([]rune(p)) <= chineseClauseMaxRunes {
			out = append(out, p)
			continue
		}
		var clause strings.Builder
		for _, r := range p {
			clause.WriteRune(r)
			if r == ',' || r == '，' {
				if c := strings.TrimSpace(clause.String()); c != "" {
					out = append(out, c)
				}
				clause.Reset()
			}
		}
		if c := strings.TrimSpace(clause.String()); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func isChinese(language string) bool {
	return strings.HasPrefix(strings.ToLower(language), "zh")
}

// cleanStream strips punctuation and whitespace so transcript and aligner
// output can be matched by character offset regardless of formatting.
func cleanStream(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GroupIntoPhrases assigns sanitized words to transcript phrases by
// matching character offsets in punctuation-stripped streams. A word joins
// the first phrase whose clean range it overlaps; phrases that attract no
// words are dropped rather than emitted empty.
func GroupIntoPhrases(words []WordSegment, text, language string) []CaptionSegment {
	phrases := SplitIntoPhrases(text, language)
	if len(phrases) == 0 {
		return nil
	}

	type span struct{ start, end int }
	phraseSpans := make([]span, len(phrases))
	pos := 0
	for i, p := range phrases {
		n := len([]rune(cleanStream(p)))
		phraseSpans[i] = span{pos, pos + n}
		pos += n
	}

	assigned := make([][]WordSegment, len(phrases))
	wordPos := 0
	for _, w := range words {
		n := len([]rune(cleanStream(w.Text)))
		if n == 0 {
			continue
		}
		start, end := wordPos, wordPos+n
		wordPos += n
		for i, ps := range phraseSpans {
			if start < ps.end && end > ps.start {
				assigned[i] = append(assigned[i], w)
				break
			}
		}
	}

	var segments []CaptionSegment
	for i, ws := range assigned {
		if len(ws) == 0 {
			continue
		}
		segments = append(segments, CaptionSegment{
			Text:    phrases[i],
			StartMs: ws[0].StartMs,
			EndMs:   ws[len(ws)-1].EndMs,
			Words:   ws,
		})
	}
	return segments
}

// regroupUnits merges character-level aligner units into word-level
// segments using the word segmenter, consuming one non-punctuation unit
// per character of each word. When no segmenter is available or it
// yields no words, the character-level units are kept as-is.
func regroupUnits(units []AlignedUnit, text string, segmenter WordSegmenter) []AlignedUnit {
	if segmenter == nil {
		return units
	}
	segs := segmenter.Segment(text)
	if len(segs) == 0 {
		return units
	}
	var clean []AlignedUnit
	for _, u := range units {
		if cleanStream(u.Text) == "" {
			continue
		}
		clean = append(clean, u)
	}
	var out []AlignedUnit
	idx := 0
	for _, word := range segs {
		n := len([]rune(cleanStream(word)))
		if n == 0 || idx >= len(clean) {
			continue
		}
		last := idx + n - 1
		if last >= len(clean) {
			last = len(clean) - 1
		}
		out = append(out, AlignedUnit{
			Text:     word,
			StartSec: clean[idx].StartSec,
			EndSec:   clean[last].EndSec,
		})
		idx = last + 1
	}
	return out
}

func unitsToWords(units []AlignedUnit) []WordSegment {
	words := make([]WordSegment, 0, len(units))
	for _, u := range units {
		words = append(words, WordSegment{
			Text:    u.Text,
			StartMs: int(math.Round(u.StartSec * 1000)),
			EndMs:   int(math.Round(u.EndSec * 1000)),
		})
	}
	return words
}

// AlignAudio aligns one audio file against its transcript. With phraseLevel
// set the words are grouped into sentence captions; otherwise each word
// becomes its own caption.
func (a *CaptionAligner) AlignAudio(ctx context.Context, audioPath, text, language string, phraseLevel bool) ([]CaptionSegment, error) {
	units, err := a.aligner.Align(ctx, audioPath, text, language)
	if err != nil {
		return nil, fmt.Errorf("forced alignment failed: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("forced alignment returned no units for %s", audioPath)
	}

	if isChinese(language) {
		units = regroupUnits(units, text, a.segmenter)
	}

	words := SanitizeWordSegments(unitsToWords(units))

	if phraseLevel {
		return GroupIntoPhrases(words, text, language), nil
	}

	segments := make([]CaptionSegment, 0, len(words))
	for _, w := range words {
		segments = append(segments, CaptionSegment{
			Text:    w.Text,
			StartMs: w.StartMs,
			EndMs:   w.EndMs,
			Words:   []WordSegment{w},
		})
	}
	return segments, nil
}

// AlignDialogueLines aligns separately recorded dialogue lines and joins
// them on one continuous timeline. Each line's captions are shifted by a
// running offset equal to the previous line's last caption end, matching
// the timeline the concatenated clips produce.
func (a *CaptionAligner) AlignDialogueLines(ctx context.Context, audioPaths, texts []string, language string) ([]CaptionSegment, error) {
	if len(audioPaths) != len(texts) {
		return nil, fmt.Errorf("audio/text count mismatch: %d vs %d", len(audioPaths), len(texts))
	}

	var all []CaptionSegment
	offset := 0
	for i := range audioPaths {
		segments, err := a.AlignAudio(ctx, audioPaths[i], texts[i], language, false)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		for _, seg := range segments {
			seg.StartMs += offset
			seg.EndMs += offset
			shifted := make([]WordSegment, len(seg.Words))
			for j, w := range seg.Words {
				w.StartMs += offset
				w.EndMs += offset
				shifted[j] = w
			}
			seg.Words = shifted
			all = append(all, seg)
		}
		if len(all) > 0 {
			offset = all[len(all)-1].EndMs
		}
		log.Printf("[CaptionAligner] Line %d aligned: %d captions, timeline now at %dms", i+1, len(segments), offset)
	}
	return all, nil
}

// EstimateDurationFromDialogue picks the clip duration for a dialogue line
// assuming ~2.5 spoken words per second, rounded up to the next duration
// the video generator accepts.
func EstimateDurationFromDialogue(text string) int {
	seconds := float64(len(strings.Fields(text))) / 2.5
	for _, d := range config.SupportedClipDurations {
		if seconds <= float64(d) {
			return d
		}
	}
	return config.SupportedClipDurations[len(config.SupportedClipDurations)-1]
}
