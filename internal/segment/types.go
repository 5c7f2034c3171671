package segment

// Speaker labels for the two recorded channels.
const (
	SpeakerMe   = "Me"   // microphone channel
	SpeakerThem = "Them" // system-output channel
)

// TokenTiming is one recognized token with its timestamps and confidence,
// as reported by the recognizer. Immutable once produced.
type TokenTiming struct {
	Token      string  `json:"token"`
	Start      float64 `json:"start"` // seconds from recording start
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"` // in [0, 1]
}

// Segment is one speaker-labeled span of the transcript. Confidence is nil
// when the segment was built without per-token confidence data.
type Segment struct {
	Speaker    string   `json:"speaker"`
	Start      float64  `json:"start"` // seconds from recording start
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result is the full output of one transcription pass over both channels.
// Confidence and RTFX are nil when their inputs are missing; they are
// never fabricated as zero.
type Result struct {
	Segments          []Segment `json:"segments"`
	FullText          string    `json:"full_text"`
	PlainText         string    `json:"plain_text"`
	MeText            string    `json:"me_text"`
	ThemText          string    `json:"them_text"`
	NumSegments       int       `json:"num_segments"`
	DurationSeconds   float64   `json:"duration_seconds"`
	ProcessingSeconds float64   `json:"processing_time"`
	Model             string    `json:"model_used"`
	Confidence        *float64  `json:"confidence,omitempty"`
	RTFX              *float64  `json:"rtfx,omitempty"`
}
