package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/VCasecnikovs/duorec/internal/audio"
)

// ChunkFunc receives one native-format buffer per capture callback.
// The chunk's buffers are reused between invocations and must not be
// retained. ChunkFunc runs on the capture goroutine and must stay
// allocation-light and non-blocking.
type ChunkFunc func(*audio.PcmChunk)

// Source is one live audio input (microphone or system output).
type Source interface {
	// Name identifies the source for logs ("microphone", "system-loopback", ...).
	Name() string

	// Start opens the underlying device at its native format and begins
	// delivering chunks to onChunk. The returned handle stops the capture.
	Start(ctx context.Context, onChunk ChunkFunc) (*Handle, error)
}

// Handle carries the stop capability for one running capture. There is no
// process-wide recording state; independent captures can run concurrently.
type Handle struct {
	once sync.Once
	stop func() error
	err  error
}

// Stop halts the capture. It is idempotent and blocks until the capture
// goroutine has exited, guaranteeing no further ChunkFunc invocations.
func (h *Handle) Stop() error {
	h.once.Do(func() {
		h.err = h.stop()
	})
	return h.err
}

// NewHandle wraps a stop function into a Handle. Source implementations
// outside this package use it to return the standard stop capability.
func NewHandle(stop func() error) *Handle {
	return &Handle{stop: stop}
}

// defaultFramesPerBuffer is the read-buffer size we request from PortAudio.
// Callers must not rely on chunks being exactly this long.
const defaultFramesPerBuffer = 1024

// runInputStream opens dev as an input at its native rate and pumps buffers
// to onChunk from a dedicated goroutine until the handle is stopped.
// A portaudio.Initialize reference is held for the stream's lifetime and
// released on stop.
func runInputStream(ctx context.Context, logger *slog.Logger, class PermissionClass,
	dev *portaudio.DeviceInfo, channels int, onChunk ChunkFunc) (*Handle, error) {

	buffer := make([]float32, defaultFramesPerBuffer*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      dev.DefaultSampleRate,
		FramesPerBuffer: defaultFramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, classifyOpenError(class, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, classifyOpenError(class, err)
	}

	sampleRate := int(dev.DefaultSampleRate)
	logger.Info("Capture started",
		slog.String("device", dev.Name),
		slog.Int("sample_rate", sampleRate),
		slog.Int("channels", channels),
	)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		chunk := audio.PcmChunk{
			Float32:    buffer,
			SampleRate: sampleRate,
			Channels:   channels,
			Format:     audio.FormatFloat32,
			Layout:     audio.LayoutInterleaved,
		}
		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				return
			default:
			}
			if err := stream.Read(); err != nil {
				// Device disappeared or the stream was stopped under us.
				// Stop cleanly; the partial recording stays valid.
				select {
				case <-quit:
				default:
					logger.Warn("Capture read failed, stopping source",
						slog.String("device", dev.Name),
						slog.String("error", err.Error()),
					)
				}
				return
			}
			onChunk(&chunk)
		}
	}()

	stop := func() error {
		close(quit)
		wg.Wait()
		var firstErr error
		if err := stream.Stop(); err != nil {
			firstErr = fmt.Errorf("failed to stop %s stream: %w", class, err)
		}
		if err := stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s stream: %w", class, err)
		}
		portaudio.Terminate()
		logger.Info("Capture stopped", slog.String("device", dev.Name))
		return firstErr
	}

	return NewHandle(stop), nil
}

// inputChannels clamps a device's channel count to mono or stereo; the
// converter downmixes anything above one channel.
func inputChannels(dev *portaudio.DeviceInfo) int {
	if dev.MaxInputChannels >= 2 {
		return 2
	}
	return 1
}

// DeviceInfo describes one input-capable audio device for listings.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
	IsLoopback        bool
}

// ListInputDevices returns all input-capable devices known to PortAudio.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceUnavailable("failed to initialize PortAudio", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceUnavailable("failed to enumerate devices", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         dev.Name == defaultName,
			IsLoopback:        isLoopbackName(dev.Name),
		})
	}
	return out, nil
}
