package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VCasecnikovs/duorec/internal/audio"
	"github.com/VCasecnikovs/duorec/internal/capture"
	"github.com/VCasecnikovs/duorec/internal/metrics"
)

// Channel file names inside a session directory.
const (
	MicFileName    = "mic.wav"
	SystemFileName = "system.wav"
)

// Recorder starts dual-channel recordings. It holds no recording state
// itself; each Start returns an independent Recording handle, so
// concurrent recordings (and tests) never share process-wide flags.
type Recorder struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	targetRate int
	mic        capture.Source
	system     capture.Source
}

// SessionInfo describes one finished (or stopped) recording.
type SessionInfo struct {
	MicPath    string  `json:"mic_path"`
	SystemPath string  `json:"system_path"`
	Duration   float64 `json:"duration"` // seconds, longer of the two channels
	SampleRate int     `json:"sample_rate"`
}

// NewRecorder creates a recorder writing mono 16-bit PCM at targetRate.
// m may be nil to disable metrics.
func NewRecorder(logger *slog.Logger, m *metrics.Metrics, targetRate int, mic, system capture.Source) (*Recorder, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("target rate must be positive, got %d", targetRate)
	}
	if mic == nil || system == nil {
		return nil, fmt.Errorf("both capture sources are required")
	}
	return &Recorder{
		logger:     logger,
		metrics:    m,
		targetRate: targetRate,
		mic:        mic,
		system:     system,
	}, nil
}

// Recording is one in-flight dual-channel capture.
type Recording struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	micChannel *channel
	sysChannel *channel

	startTime time.Time
	stopOnce  sync.Once
	info      SessionInfo
	stopErr   error
}

// channel couples one capture source with its converter and writer.
type channel struct {
	name   string
	conv   *audio.Converter
	writer *audio.Writer
	handle *capture.Handle

	logger  *slog.Logger
	metrics *metrics.Metrics

	writeFailed bool
}

// onChunk converts and appends one capture buffer. It runs on the capture
// goroutine: no locks, no allocation beyond converter scratch growth.
func (ch *channel) onChunk(c *audio.PcmChunk) {
	pcm, err := ch.conv.Convert(c)
	if err != nil {
		if ch.metrics != nil {
			ch.metrics.RecordCaptureError(ch.name)
		}
		return
	}
	if err := ch.writer.Write(pcm); err != nil {
		if ch.metrics != nil {
			ch.metrics.RecordWriteError(ch.name)
		}
		// Log the first failure only; disk-full conditions would
		// otherwise flood the log at callback rate.
		if !ch.writeFailed {
			ch.writeFailed = true
			ch.logger.Error("WAV write failed, channel data from here on is lost",
				slog.String("channel", ch.name),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if ch.metrics != nil {
		ch.metrics.RecordChunkCaptured(ch.name)
		ch.metrics.RecordPCMWritten(ch.name, len(pcm))
	}
}

// Start opens mic.wav and system.wav in dir and begins capturing both
// channels. On any failure it stops what was already started and preserves
// partially written files for manual recovery.
func (r *Recorder) Start(ctx context.Context, dir string) (*Recording, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	rec := &Recording{
		logger:    r.logger,
		metrics:   r.metrics,
		startTime: time.Now(),
	}

	micChannel, err := r.openChannel("mic", filepath.Join(dir, MicFileName))
	if err != nil {
		return nil, err
	}
	rec.micChannel = micChannel

	sysChannel, err := r.openChannel("system", filepath.Join(dir, SystemFileName))
	if err != nil {
		micChannel.writer.Close()
		return nil, err
	}
	rec.sysChannel = sysChannel

	// Both writers exist; start the captures. The two sources run
	// independently, within milliseconds of each other; echo cancellation
	// compensates for the residual skew afterwards.
	micChannel.handle, err = r.mic.Start(ctx, micChannel.onChunk)
	if err != nil {
		micChannel.writer.Close()
		sysChannel.writer.Close()
		return nil, fmt.Errorf("failed to start microphone capture: %w", err)
	}

	sysChannel.handle, err = r.system.Start(ctx, sysChannel.onChunk)
	if err != nil {
		micChannel.handle.Stop()
		micChannel.writer.Close()
		sysChannel.writer.Close()
		return nil, fmt.Errorf("failed to start system-output capture: %w", err)
	}

	if r.metrics != nil {
		r.metrics.SetActiveCaptures(2)
	}
	r.logger.Info("Recording started",
		slog.String("dir", dir),
		slog.Int("sample_rate", r.targetRate),
		slog.String("mic_source", r.mic.Name()),
		slog.String("system_source", r.system.Name()),
	)

	rec.info = SessionInfo{
		MicPath:    micChannel.writer.Path(),
		SystemPath: sysChannel.writer.Path(),
		SampleRate: r.targetRate,
	}
	return rec, nil
}

func (r *Recorder) openChannel(name, path string) (*channel, error) {
	conv, err := audio.NewConverter(r.targetRate)
	if err != nil {
		return nil, err
	}
	writer, err := audio.NewWriter(path, r.targetRate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s channel file: %w", name, err)
	}
	return &channel{
		name:    name,
		conv:    conv,
		writer:  writer,
		logger:  r.logger,
		metrics: r.metrics,
	}, nil
}

// Stop halts both captures and finalizes both files. Sources are stopped
// first and block until their callbacks can no longer fire; only then are
// the writers closed, so the header rewrite cannot race a write. Stop is
// idempotent; repeated calls return the first result.
func (rec *Recording) Stop() (SessionInfo, error) {
	rec.stopOnce.Do(func() {
		var firstErr error

		for _, ch := range []*channel{rec.micChannel, rec.sysChannel} {
			if err := ch.handle.Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		for _, ch := range []*channel{rec.micChannel, rec.sysChannel} {
			if err := ch.writer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		duration := rec.micChannel.writer.Duration()
		if d := rec.sysChannel.writer.Duration(); d > duration {
			duration = d
		}
		rec.info.Duration = duration

		if rec.metrics != nil {
			rec.metrics.SetActiveCaptures(0)
			rec.metrics.RecordRecordingFinished(duration)
		}
		rec.logger.Info("Recording stopped",
			slog.Float64("duration_seconds", duration),
			slog.Float64("wall_seconds", time.Since(rec.startTime).Seconds()),
		)

		rec.stopErr = firstErr
	})
	return rec.info, rec.stopErr
}
