package transcription

import (
	"context"
	"errors"

	"github.com/VCasecnikovs/duorec/internal/segment"
)

// ErrRecognitionUnavailable means no recognizer is configured or the
// recognizer endpoint cannot be reached. Recoverable: the caller can load
// or start the recognizer and retry without data loss, since recognition
// runs over already-persisted files.
var ErrRecognitionUnavailable = errors.New("recognition unavailable")

// ChannelResult is the recognizer output for one audio channel.
// Tokens may be empty when the engine returns no word-level timing;
// callers then fall back to sentence splitting of Text.
type ChannelResult struct {
	Text   string
	Tokens []segment.TokenTiming
	Model  string
}

// Recognizer transcribes one WAV file. Implementations must be safe for
// concurrent use; both channels of a meeting are recognized sequentially
// today but nothing in the contract requires that.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string) (*ChannelResult, error)
}
