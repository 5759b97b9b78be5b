package music

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Section is one panel-length segment of a composition request.
type Section struct {
	Name           string   `json:"name"`
	PositiveStyles []string `json:"positive_styles"`
	NegativeStyles []string `json:"negative_styles"`
	DurationMs     int      `json:"duration_ms"`
	Lines          []string `json:"lines"`
}

// CompositionPlan is the structured music request: global style tags plus
// one section per panel. The sum of section durations always equals
// clip count times clip duration, so lyric timing stays panel-locked.
type CompositionPlan struct {
	PositiveGlobalStyles []string  `json:"positive_global_styles"`
	NegativeGlobalStyles []string  `json:"negative_global_styles"`
	Sections             []Section `json:"sections"`
}

// TotalDurationMs sums the section durations.
func (p CompositionPlan) TotalDurationMs() int {
	total := 0
	for _, s := range p.Sections {
		total += s.DurationMs
	}
	return total
}

// Generator is the external music service. Implementations must honor the
// exact per-section durations in the plan; without that the panel-locked
// lyric timing cannot hold.
type Generator interface {
	Compose(ctx context.Context, plan CompositionPlan, prompt string) (audioPath string, err error)
}

// PlanOptions carries the style inputs for BuildPlan.
type PlanOptions struct {
	// Prompt is a comma-separated list of global style tags.
	Prompt string
	// VocalStyle is a delivery descriptor, e.g. "breathy" or "energetic".
	VocalStyle string
	// NegativeTags is a comma-separated list of styles to avoid.
	NegativeTags string
	// BPM suggests a tempo; zero lets the model decide.
	BPM int
	// SectionStyles overrides the positive local styles per section.
	SectionStyles [][]string
}

var sectionNames = []string{"Verse 1", "Verse 2", "Chorus", "Outro"}

var defaultLocalPositive = [][]string{
	{"gentle", "soft piano", "building", "warm opening"},
	{"rising energy", "melodic", "driving rhythm", "building momentum"},
	{"energetic", "powerful", "catchy hook", "anthemic", "full energy"},
	{"triumphant", "warm resolution", "uplifting", "emotional peak"},
}

var defaultLocalNegative = [][]string{
	{"loud", "heavy drums", "aggressive"},
	{"slow", "quiet", "subdued"},
	{"subdued", "quiet", "restrained"},
	{"abrupt", "dark", "harsh"},
}

// mustAvoid keeps the model from producing sparse or dry openings that
// leave panels silent.
var mustAvoid = []string{"spoken word", "silence", "slow intro", "fade in", "sparse", "thin"}

const fillerLine = "la la la"

func isStructureTag(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}

// ExtractLyricLines returns the non-empty lyric lines with structure tags
// like [Verse 1] stripped out.
func ExtractLyricLines(lyrics string) []string {
	var lines []string
	for _, line := range strings.Split(lyrics, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || isStructureTag(stripped) {
			continue
		}
		lines = append(lines, stripped)
	}
	return lines
}

// BuildPlan turns lyrics into a composition plan with one section per
// clip. Lyric lines are grouped by [Tag] structure markers; when the tag
// count disagrees with the clip count the lines are regrouped evenly,
// padding with a filler line so every section sings.
func BuildPlan(lyrics string, clipCount, clipDurationSec int, opts PlanOptions) (CompositionPlan, error) {
	if clipCount < 1 {
		return CompositionPlan{}, fmt.Errorf("clip count must be at least 1, got %d", clipCount)
	}
	if clipDurationSec < 1 {
		return CompositionPlan{}, fmt.Errorf("clip duration must be at least 1s, got %d", clipDurationSec)
	}

	sectionLines := groupByStructureTags(lyrics)
	if len(sectionLines) != clipCount {
		sectionLines = regroupEvenly(ExtractLyricLines(lyrics), clipCount)
	}

	globalStyles := splitTags(opts.Prompt)
	if !containsFold(globalStyles, "full instrumentation") {
		globalStyles = append(globalStyles, "full instrumentation from first beat")
	}
	if !containsFold(globalStyles, "continuous") {
		globalStyles = append(globalStyles, "continuous backing track")
	}
	if opts.VocalStyle != "" && !containsFold(globalStyles, opts.VocalStyle) {
		globalStyles = append(globalStyles, opts.VocalStyle+" vocals")
	}
	if opts.BPM > 0 && !containsFold(globalStyles, "bpm") {
		globalStyles = append(globalStyles, fmt.Sprintf("%d BPM", opts.BPM))
	}
	if len(globalStyles) > 10 {
		globalStyles = globalStyles[:10]
	}

	negStyles := splitTags(opts.NegativeTags)
	for _, ma := range mustAvoid {
		if !containsFold(negStyles, ma) {
			negStyles = append(negStyles, ma)
		}
	}
	if len(negStyles) > 8 {
		negStyles = negStyles[:8]
	}

	sections := make([]Section, 0, clipCount)
	for i, lines := range sectionLines {
		name := fmt.Sprintf("Section %d", i+1)
		if i < len(sectionNames) {
			name = sectionNames[i]
		}

		var localPos []string
		switch {
		case i < len(opts.SectionStyles) && len(opts.SectionStyles[i]) > 0:
			localPos = append(localPos, opts.SectionStyles[i]...)
		case i < len(defaultLocalPositive):
			localPos = append(localPos, defaultLocalPositive[i]...)
		default:
			localPos = []string{"melodic"}
		}
		if opts.VocalStyle != "" {
			localPos = append(localPos, opts.VocalStyle+" delivery")
		}

		var localNeg []string
		if i < len(defaultLocalNegative) {
			localNeg = append(localNeg, defaultLocalNegative[i]...)
		}

		sections = append(sections, Section{
			Name:           name,
			PositiveStyles: localPos,
			NegativeStyles: localNeg,
			DurationMs:     clipDurationSec * 1000,
			Lines:          lines,
		})
	}

	plan := CompositionPlan{
		PositiveGlobalStyles: globalStyles,
		NegativeGlobalStyles: negStyles,
		Sections:             sections,
	}
	log.Printf("[CompositionPlan] %d sections, %ds total, %d lyric lines",
		len(sections), plan.TotalDurationMs()/1000, len(ExtractLyricLines(lyrics)))
	return plan, nil
}

func groupByStructureTags(lyrics string) [][]string {
	var groups [][]string
	var current []string
	for _, line := range strings.Split(lyrics, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if isStructureTag(stripped) {
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
			continue
		}
		current = append(current, stripped)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func regroupEvenly(lines []string, count int) [][]string {
	if len(lines) == 0 {
		lines = []string{fillerLine, fillerLine, fillerLine, fillerLine,
			fillerLine, fillerLine, fillerLine, fillerLine}
	}
	per := len(lines) / count
	if per < 1 {
		per = 1
	}
	var groups [][]string
	for i := 0; i < len(lines); i += per {
		end := i + per
		if end > len(lines) {
			end = len(lines)
		}
		groups = append(groups, lines[i:end])
	}
	for len(groups) < count {
		groups = append(groups, []string{fillerLine})
	}
	return groups[:count]
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func containsFold(list []string, substr string) bool {
	needle := strings.ToLower(substr)
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
