package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// loopbackNameMarkers identify audio-only system-output tap devices across
// host APIs: PulseAudio/PipeWire monitors, WASAPI loopback endpoints and
// virtual-device drivers. Matching is case-insensitive substring.
var loopbackNameMarkers = []string{
	"monitor",
	"loopback",
	"blackhole",
	"soundflower",
	"stereo mix",
	"what u hear",
}

func isLoopbackName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range loopbackNameMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// NewSystemOutput probes the device list and returns the best available
// system-output source. The audio-only loopback class is preferred; the
// display-tap fallback (opening the default output endpoint as an input)
// is used only when no loopback device exists. deviceName pins a specific
// tap device and skips probing.
func NewSystemOutput(logger *slog.Logger, deviceName string) (Source, error) {
	if deviceName != "" {
		return &loopbackSource{logger: logger, deviceName: deviceName}, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, deviceUnavailable("failed to initialize PortAudio", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceUnavailable("failed to enumerate devices", err)
	}

	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && isLoopbackName(dev.Name) {
			logger.Info("System-output probe selected loopback device",
				slog.String("device", dev.Name),
			)
			return &loopbackSource{logger: logger, deviceName: dev.Name}, nil
		}
	}

	logger.Warn("No audio-only loopback device found, using output-endpoint tap fallback")
	return &outputTapSource{logger: logger}, nil
}

// loopbackSource captures all system output through an audio-only loopback
// or monitor device, independent of which application produces the audio.
type loopbackSource struct {
	logger     *slog.Logger
	deviceName string
}

// Name implements Source.
func (s *loopbackSource) Name() string {
	return "system-loopback"
}

// Start implements Source.
func (s *loopbackSource) Start(ctx context.Context, onChunk ChunkFunc) (*Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceUnavailable("failed to initialize PortAudio", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, deviceUnavailable("failed to enumerate devices", err)
	}

	var dev *portaudio.DeviceInfo
	for _, d := range devices {
		if d.Name == s.deviceName && d.MaxInputChannels > 0 {
			dev = d
			break
		}
	}
	if dev == nil {
		portaudio.Terminate()
		return nil, deviceUnavailable(
			fmt.Sprintf("loopback device %q not found or not input-capable", s.deviceName), nil)
	}

	logger := s.logger.With(slog.String("source", s.Name()))
	return runInputStream(ctx, logger, PermissionSystemAudio, dev, inputChannels(dev), onChunk)
}

// outputTapSource is the fallback system-output mechanism: it opens the
// default output endpoint in input mode, which host APIs with built-in
// loopback support expose as a capture path. Where the host API does not
// support this the error names the system-audio permission class so the
// caller can point the user at the right remediation.
type outputTapSource struct {
	logger *slog.Logger
}

// Name implements Source.
func (s *outputTapSource) Name() string {
	return "system-output-tap"
}

// Start implements Source.
func (s *outputTapSource) Start(ctx context.Context, onChunk ChunkFunc) (*Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceUnavailable("failed to initialize PortAudio", err)
	}

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, deviceUnavailable("no default output device", err)
	}
	if dev.MaxInputChannels <= 0 {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: output device %q exposes no capture path; "+
			"install a loopback device or %s",
			ErrDeviceUnavailable, dev.Name, PermissionSystemAudio.remediation())
	}

	logger := s.logger.With(slog.String("source", s.Name()))
	return runInputStream(ctx, logger, PermissionSystemAudio, dev, inputChannels(dev), onChunk)
}
