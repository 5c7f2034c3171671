package segment

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Params controls segment construction.
type Params struct {
	// MinSegmentSeconds is the minimum accumulated duration before a
	// sentence boundary closes a segment, preventing micro-segments.
	MinSegmentSeconds float64 `yaml:"min_segment_seconds"`
	// MaxSegmentSeconds closes a segment regardless of punctuation,
	// preventing unbounded run-ons.
	MaxSegmentSeconds float64 `yaml:"max_segment_seconds"`
}

// DefaultParams returns the default segmentation parameters.
func DefaultParams() Params {
	return Params{
		MinSegmentSeconds: 2.0,
		MaxSegmentSeconds: 30.0,
	}
}

// Validate checks parameter sanity.
func (p *Params) Validate() error {
	if p.MinSegmentSeconds <= 0 {
		return fmt.Errorf("min_segment_seconds must be positive, got %f", p.MinSegmentSeconds)
	}
	if p.MaxSegmentSeconds <= p.MinSegmentSeconds {
		return fmt.Errorf("max_segment_seconds (%f) must be greater than min_segment_seconds (%f)",
			p.MaxSegmentSeconds, p.MinSegmentSeconds)
	}
	return nil
}

// Builder groups recognizer output into transcript segments.
type Builder struct {
	params Params
}

// NewBuilder creates a Builder with the given parameters.
func NewBuilder(params Params) (*Builder, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("segment params: %w", err)
	}
	return &Builder{params: params}, nil
}

// FromTokens groups consecutive tokens into segments for one speaker.
// A segment closes when a token ends a sentence and the accumulated
// duration has reached the minimum, or when the duration hits the maximum
// cap. Segment confidence is the mean of its tokens' confidences.
func (b *Builder) FromTokens(speaker string, tokens []TokenTiming) []Segment {
	var segments []Segment
	var group []TokenTiming

	flush := func() {
		if len(group) == 0 {
			return
		}
		segments = append(segments, b.segmentFromGroup(speaker, group))
		group = group[:0]
	}

	for _, tok := range tokens {
		group = append(group, tok)
		duration := tok.End - group[0].Start
		switch {
		case duration >= b.params.MaxSegmentSeconds:
			flush()
		case endsSentence(tok.Token) && duration >= b.params.MinSegmentSeconds:
			flush()
		}
	}
	flush()

	return segments
}

func (b *Builder) segmentFromGroup(speaker string, group []TokenTiming) Segment {
	var sum float64
	for _, tok := range group {
		sum += tok.Confidence
	}
	conf := sum / float64(len(group))
	return Segment{
		Speaker:    speaker,
		Start:      group[0].Start,
		End:        group[len(group)-1].End,
		Text:       joinTokens(group),
		Confidence: &conf,
	}
}

// FromText builds segments from plain recognized text when no token timing
// is available. The audio duration is distributed evenly across the split
// sentences; the timestamps are an explicit approximation, so no segment
// confidence is attached.
func (b *Builder) FromText(speaker, text string, audioDuration float64) []Segment {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	per := audioDuration / float64(len(sentences))
	segments := make([]Segment, 0, len(sentences))
	for i, sentence := range sentences {
		segments = append(segments, Segment{
			Speaker: speaker,
			Start:   float64(i) * per,
			End:     float64(i+1) * per,
			Text:    sentence,
		})
	}
	return segments
}

// Merge combines segment lists from both speakers into one transcript
// ordered by start time, dropping empty and whitespace-only segments.
// The sort is stable so equal start times keep their channel order.
func Merge(lists ...[]Segment) []Segment {
	var merged []Segment
	for _, list := range lists {
		for _, seg := range list {
			if strings.TrimSpace(seg.Text) == "" {
				continue
			}
			merged = append(merged, seg)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}

// BuildResult assembles the final transcript result from merged segments.
// audioDuration is the longer of the two channel durations; processing is
// the recognition wall-clock time in seconds.
func BuildResult(segments []Segment, audioDuration, processing float64, model string) Result {
	var lines, plain, me, them []string
	maxEnd := 0.0
	for _, seg := range segments {
		timestamp := ""
		if seg.Start > 0 {
			timestamp = fmt.Sprintf(" [%.1fs]", seg.Start)
		}
		lines = append(lines, fmt.Sprintf("**%s**%s: %s", seg.Speaker, timestamp, seg.Text))
		plain = append(plain, seg.Text)
		switch seg.Speaker {
		case SpeakerMe:
			me = append(me, seg.Text)
		case SpeakerThem:
			them = append(them, seg.Text)
		}
		if seg.End > maxEnd {
			maxEnd = seg.End
		}
	}

	duration := audioDuration
	if maxEnd > duration {
		duration = maxEnd
	}

	result := Result{
		Segments:          segments,
		FullText:          strings.Join(lines, "\n"),
		PlainText:         strings.Join(plain, " "),
		MeText:            strings.Join(me, " "),
		ThemText:          strings.Join(them, " "),
		NumSegments:       len(segments),
		DurationSeconds:   duration,
		ProcessingSeconds: processing,
		Model:             model,
	}

	if conf, ok := meanConfidence(segments); ok {
		result.Confidence = &conf
	}
	if audioDuration > 0 && processing > 0 {
		rtfx := audioDuration / processing
		result.RTFX = &rtfx
	}
	return result
}

// meanConfidence averages over segments that carry a confidence value.
// Segments without one are excluded, not treated as zero.
func meanConfidence(segments []Segment) (float64, bool) {
	var sum float64
	var count int
	for _, seg := range segments {
		if seg.Confidence != nil {
			sum += *seg.Confidence
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// sentenceTerminators covers Latin and CJK terminal punctuation plus the
// ellipsis, so splitting stays reasonable across recognizer locales.
const sentenceTerminators = ".!?…。！？"

func endsSentence(token string) bool {
	trimmed := strings.TrimRightFunc(token, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	return strings.ContainsRune(sentenceTerminators, runes[len(runes)-1])
}

// SplitSentences splits text at terminal punctuation, keeping the
// punctuation with its sentence and discarding empty pieces.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			flush()
		}
	}
	flush()

	return sentences
}

// joinTokens concatenates token texts, inserting a space between tokens
// unless the next token begins with whitespace or closing punctuation
// (recognizers differ on whether tokens carry their own spacing).
func joinTokens(tokens []TokenTiming) string {
	var sb strings.Builder
	for i, tok := range tokens {
		text := tok.Token
		if i > 0 && text != "" {
			first := []rune(text)[0]
			if !unicode.IsSpace(first) && !strings.ContainsRune(".,!?;:…。！？", first) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(text)
	}
	return strings.TrimSpace(sb.String())
}
