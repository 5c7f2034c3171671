package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/VCasecnikovs/duorec/internal/audio"
	"github.com/VCasecnikovs/duorec/internal/echo"
	"github.com/VCasecnikovs/duorec/internal/metrics"
	"github.com/VCasecnikovs/duorec/internal/segment"
)

// Pipeline runs the full post-recording pass: echo-clean the microphone
// channel against the system channel, recognize both, and build the merged
// transcript. It operates only on finished files and shares no state with
// the capture path, so a failed run is always retryable.
type Pipeline struct {
	logger     *slog.Logger
	recognizer Recognizer
	canceller  *echo.Canceller
	builder    *segment.Builder
	metrics    *metrics.Metrics
}

// NewPipeline wires the recognizer, echo canceller and segment builder.
// m may be nil to disable metrics.
func NewPipeline(logger *slog.Logger, recognizer Recognizer, canceller *echo.Canceller, builder *segment.Builder, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		logger:     logger,
		recognizer: recognizer,
		canceller:  canceller,
		builder:    builder,
		metrics:    m,
	}
}

// TranscribeMeeting transcribes one recording session from its two channel
// files and returns the merged transcript result.
func (p *Pipeline) TranscribeMeeting(ctx context.Context, micPath, sysPath string) (*segment.Result, error) {
	if p.recognizer == nil {
		return nil, fmt.Errorf("%w: no recognizer configured", ErrRecognitionUnavailable)
	}

	startTime := time.Now()

	micSamples, micRate, err := audio.ReadFile(micPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load mic channel: %w", err)
	}
	sysSamples, sysRate, err := audio.ReadFile(sysPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load system channel: %w", err)
	}
	if micRate != sysRate {
		return nil, fmt.Errorf("channel sample rates differ: mic %d Hz, system %d Hz", micRate, sysRate)
	}

	micDuration := float64(len(micSamples)) / float64(micRate)
	sysDuration := float64(len(sysSamples)) / float64(sysRate)
	audioDuration := micDuration
	if sysDuration > audioDuration {
		audioDuration = sysDuration
	}

	// Echo-clean the mic channel. A cancellation failure downgrades to the
	// raw mic audio rather than aborting the whole transcription.
	recognizeMicPath := micPath
	cleaned, stats, err := p.canceller.Process(micSamples, sysSamples)
	if err != nil {
		p.logger.Warn("Echo cancellation failed, using raw mic audio",
			slog.String("error", err.Error()),
		)
	} else if !stats.Skipped {
		if p.metrics != nil {
			p.metrics.RecordEchoRun(stats.SuppressedFraction, stats.DelaySeconds)
		}
		cleanPath := filepath.Join(filepath.Dir(micPath), "mic_clean.wav")
		if err := audio.WriteFile(cleanPath, cleaned, micRate); err != nil {
			p.logger.Warn("Failed to persist cleaned mic audio, using raw mic audio",
				slog.String("error", err.Error()),
			)
		} else {
			recognizeMicPath = cleanPath
			defer os.Remove(cleanPath)
		}
	}

	micSegments, model, err := p.recognizeChannel(ctx, segment.SpeakerMe, recognizeMicPath, micDuration)
	if err != nil {
		return nil, err
	}
	sysSegments, sysModel, err := p.recognizeChannel(ctx, segment.SpeakerThem, sysPath, sysDuration)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = sysModel
	}

	merged := segment.Merge(micSegments, sysSegments)
	result := segment.BuildResult(merged, audioDuration, time.Since(startTime).Seconds(), model)

	p.logger.Info("Meeting transcription done",
		slog.Int("segments", result.NumSegments),
		slog.Int("me_segments", len(micSegments)),
		slog.Int("them_segments", len(sysSegments)),
		slog.Float64("audio_seconds", result.DurationSeconds),
		slog.Float64("processing_seconds", result.ProcessingSeconds),
	)
	return &result, nil
}

// recognizeChannel transcribes one channel file and builds its segments,
// falling back to sentence splitting when the engine returns no timing.
func (p *Pipeline) recognizeChannel(ctx context.Context, speaker, path string, duration float64) ([]segment.Segment, string, error) {
	p.logger.Info("Recognizing channel",
		slog.String("speaker", speaker),
		slog.String("path", path),
	)

	result, err := p.recognizer.Recognize(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to recognize %s channel: %w", speaker, err)
	}

	var segments []segment.Segment
	if len(result.Tokens) > 0 {
		segments = p.builder.FromTokens(speaker, result.Tokens)
	} else {
		segments = p.builder.FromText(speaker, result.Text, duration)
	}
	return segments, result.Model, nil
}
