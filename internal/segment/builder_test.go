package segment

import (
	"math"
	"strings"
	"testing"
)

func TestNewBuilderValidation(t *testing.T) {
	if _, err := NewBuilder(Params{MinSegmentSeconds: 0, MaxSegmentSeconds: 30}); err == nil {
		t.Error("Expected error for zero min segment duration")
	}
	if _, err := NewBuilder(Params{MinSegmentSeconds: 10, MaxSegmentSeconds: 5}); err == nil {
		t.Error("Expected error for max <= min")
	}
	if _, err := NewBuilder(DefaultParams()); err != nil {
		t.Errorf("Default params should validate: %v", err)
	}
}

func TestFromTokensSentenceBoundary(t *testing.T) {
	b, err := NewBuilder(DefaultParams())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	tokens := []TokenTiming{
		{Token: "hello", Start: 0.0, End: 0.5, Confidence: 0.9},
		{Token: " there.", Start: 0.5, End: 1.0, Confidence: 0.8}, // boundary, but under min duration
		{Token: " how", Start: 1.0, End: 1.5, Confidence: 0.9},
		{Token: " are", Start: 1.5, End: 2.0, Confidence: 0.9},
		{Token: " you?", Start: 2.0, End: 2.5, Confidence: 0.7}, // boundary past min duration
		{Token: " fine", Start: 2.5, End: 3.0, Confidence: 0.95},
	}

	segments := b.FromTokens(SpeakerMe, tokens)
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}

	first := segments[0]
	if first.Speaker != SpeakerMe {
		t.Errorf("Expected speaker %q, got %q", SpeakerMe, first.Speaker)
	}
	if first.Start != 0.0 || first.End != 2.5 {
		t.Errorf("Expected first segment 0.0-2.5, got %f-%f", first.Start, first.End)
	}
	if first.Text != "hello there. how are you?" {
		t.Errorf("Unexpected first segment text: %q", first.Text)
	}
	if first.Confidence == nil {
		t.Fatal("Expected confidence on token-built segment")
	}
	wantConf := (0.9 + 0.8 + 0.9 + 0.9 + 0.7) / 5
	if math.Abs(*first.Confidence-wantConf) > 0.001 {
		t.Errorf("Expected confidence %f, got %f", wantConf, *first.Confidence)
	}

	second := segments[1]
	if second.Text != "fine" {
		t.Errorf("Unexpected trailing segment text: %q", second.Text)
	}
}

func TestFromTokensMaxDurationCap(t *testing.T) {
	b, err := NewBuilder(Params{MinSegmentSeconds: 2, MaxSegmentSeconds: 10})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	// Forty seconds of unpunctuated speech, one token per second.
	var tokens []TokenTiming
	for i := 0; i < 40; i++ {
		tokens = append(tokens, TokenTiming{
			Token:      "word",
			Start:      float64(i),
			End:        float64(i + 1),
			Confidence: 0.9,
		})
	}

	segments := b.FromTokens(SpeakerThem, tokens)
	if len(segments) != 4 {
		t.Fatalf("Expected 4 capped segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if d := seg.End - seg.Start; d > 10 {
			t.Errorf("Segment %d exceeds cap: %f seconds", i, d)
		}
	}
}

func TestFromTokensEmpty(t *testing.T) {
	b, err := NewBuilder(DefaultParams())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	if segments := b.FromTokens(SpeakerMe, nil); len(segments) != 0 {
		t.Errorf("Expected no segments for no tokens, got %d", len(segments))
	}
}

func TestFromTextDistributesDuration(t *testing.T) {
	b, err := NewBuilder(DefaultParams())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	segments := b.FromText(SpeakerThem, "First sentence. Second one! Third?", 30.0)
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if segments[0].Start != 0 || segments[0].End != 10 {
		t.Errorf("Expected first segment 0-10, got %f-%f", segments[0].Start, segments[0].End)
	}
	if segments[2].Start != 20 || segments[2].End != 30 {
		t.Errorf("Expected last segment 20-30, got %f-%f", segments[2].Start, segments[2].End)
	}
	if segments[1].Text != "Second one!" {
		t.Errorf("Unexpected middle text: %q", segments[1].Text)
	}
	for i, seg := range segments {
		if seg.Confidence != nil {
			t.Errorf("Segment %d from plain text should carry no confidence", i)
		}
	}
}

func TestFromTextEmpty(t *testing.T) {
	b, err := NewBuilder(DefaultParams())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	if segments := b.FromText(SpeakerMe, "   ", 10); len(segments) != 0 {
		t.Errorf("Expected no segments for blank text, got %d", len(segments))
	}
}

func TestMergeOrdersAndDropsEmpty(t *testing.T) {
	mine := []Segment{
		{Speaker: SpeakerMe, Start: 5, End: 8, Text: "my reply"},
		{Speaker: SpeakerMe, Start: 20, End: 22, Text: "   "},
	}
	theirs := []Segment{
		{Speaker: SpeakerThem, Start: 0, End: 4, Text: "their question"},
		{Speaker: SpeakerThem, Start: 10, End: 14, Text: "their followup"},
	}

	merged := Merge(mine, theirs)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 segments after merge, got %d", len(merged))
	}
	if merged[0].Speaker != SpeakerThem || merged[1].Speaker != SpeakerMe || merged[2].Speaker != SpeakerThem {
		t.Errorf("Unexpected merge order: %s, %s, %s",
			merged[0].Speaker, merged[1].Speaker, merged[2].Speaker)
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Start < merged[i-1].Start {
			t.Errorf("Merge not ordered at index %d", i)
		}
	}
}

func TestMergeStableOnEqualStart(t *testing.T) {
	a := []Segment{{Speaker: SpeakerMe, Start: 1, End: 2, Text: "mine"}}
	b := []Segment{{Speaker: SpeakerThem, Start: 1, End: 2, Text: "theirs"}}
	merged := Merge(a, b)
	if merged[0].Speaker != SpeakerMe {
		t.Error("Equal start times should keep list order")
	}
}

func TestBuildResult(t *testing.T) {
	c1, c2 := 0.9, 0.7
	segments := []Segment{
		{Speaker: SpeakerThem, Start: 0, End: 4, Text: "Question here.", Confidence: &c1},
		{Speaker: SpeakerMe, Start: 5, End: 8, Text: "Answer here.", Confidence: &c2},
		{Speaker: SpeakerThem, Start: 10, End: 12, Text: "Closing remark."},
	}

	result := BuildResult(segments, 15.0, 3.0, "whisper-large-v3")

	if result.NumSegments != 3 {
		t.Errorf("Expected 3 segments, got %d", result.NumSegments)
	}
	if result.DurationSeconds != 15.0 {
		t.Errorf("Expected duration 15, got %f", result.DurationSeconds)
	}
	if result.Model != "whisper-large-v3" {
		t.Errorf("Unexpected model: %q", result.Model)
	}

	lines := strings.Split(result.FullText, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 transcript lines, got %d", len(lines))
	}
	if lines[0] != "**Them**: Question here." {
		t.Errorf("Segment at zero start should have no timestamp: %q", lines[0])
	}
	if lines[1] != "**Me** [5.0s]: Answer here." {
		t.Errorf("Unexpected transcript line: %q", lines[1])
	}

	if result.MeText != "Answer here." {
		t.Errorf("Unexpected MeText: %q", result.MeText)
	}
	if result.ThemText != "Question here. Closing remark." {
		t.Errorf("Unexpected ThemText: %q", result.ThemText)
	}

	// Mean confidence over segments that carry one: (0.9 + 0.7) / 2.
	if result.Confidence == nil {
		t.Fatal("Expected aggregate confidence")
	}
	if math.Abs(*result.Confidence-0.8) > 0.001 {
		t.Errorf("Expected aggregate confidence 0.8, got %f", *result.Confidence)
	}

	if result.RTFX == nil {
		t.Fatal("Expected RTFX with positive duration and processing time")
	}
	if math.Abs(*result.RTFX-5.0) > 0.001 {
		t.Errorf("Expected RTFX 5.0, got %f", *result.RTFX)
	}
}

func TestBuildResultDurationFromSegments(t *testing.T) {
	segments := []Segment{
		{Speaker: SpeakerMe, Start: 0, End: 20, Text: "long segment"},
	}
	result := BuildResult(segments, 10.0, 2.0, "m")
	if result.DurationSeconds != 20.0 {
		t.Errorf("Expected duration stretched to 20, got %f", result.DurationSeconds)
	}
}

func TestBuildResultEmpty(t *testing.T) {
	result := BuildResult(nil, 0, 0, "m")
	if result.NumSegments != 0 {
		t.Errorf("Expected 0 segments, got %d", result.NumSegments)
	}
	if result.Confidence != nil {
		t.Error("Expected no aggregate confidence without segments")
	}
	if result.RTFX != nil {
		t.Error("Expected no RTFX with zero durations")
	}
	if result.FullText != "" {
		t.Errorf("Expected empty full text, got %q", result.FullText)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One. Two! Three? Four… 五。")
	want := []string{"One.", "Two!", "Three?", "Four…", "五。"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if got := SplitSentences("no terminal punctuation"); len(got) != 1 {
		t.Errorf("Trailing text without punctuation should form one sentence, got %v", got)
	}
	if got := SplitSentences(""); len(got) != 0 {
		t.Errorf("Empty text should give no sentences, got %v", got)
	}
}

func TestEndsSentence(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"hello.", true},
		{"done! ", true},
		{"что？", true},
		{"word", false},
		{"  ", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := endsSentence(tc.token); got != tc.want {
			t.Errorf("endsSentence(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestJoinTokens(t *testing.T) {
	tokens := []TokenTiming{
		{Token: "hello"},
		{Token: " world"},
		{Token: ","},
		{Token: " again"},
		{Token: "now"},
	}
	got := joinTokens(tokens)
	want := "hello world, again now"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
