package capture

import (
	"context"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures from an input device at its native rate and format.
// An empty device name selects the system default input.
type Microphone struct {
	logger     *slog.Logger
	deviceName string
}

// NewMicrophone creates a microphone source. deviceName may be empty.
func NewMicrophone(logger *slog.Logger, deviceName string) *Microphone {
	return &Microphone{
		logger:     logger.With(slog.String("source", "microphone")),
		deviceName: deviceName,
	}
}

// Name implements Source.
func (m *Microphone) Name() string {
	return "microphone"
}

// Start implements Source. Permission refusal is terminal and surfaced as
// ErrPermissionDenied; the caller must not retry without user action.
func (m *Microphone) Start(ctx context.Context, onChunk ChunkFunc) (*Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceUnavailable("failed to initialize PortAudio", err)
	}

	dev, err := m.device()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	return runInputStream(ctx, m.logger, PermissionMicrophone, dev, inputChannels(dev), onChunk)
}

func (m *Microphone) device() (*portaudio.DeviceInfo, error) {
	if m.deviceName != "" && m.deviceName != "default" {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, deviceUnavailable("failed to enumerate devices", err)
		}
		for _, dev := range devices {
			if dev.Name == m.deviceName && dev.MaxInputChannels > 0 {
				return dev, nil
			}
		}
		m.logger.Warn("Configured input device not found, falling back to default",
			slog.String("device", m.deviceName),
		)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, deviceUnavailable("no default input device", err)
	}
	return dev, nil
}
