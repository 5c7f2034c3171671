package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/VCasecnikovs/duorec/internal/audio"
	"github.com/VCasecnikovs/duorec/internal/capture"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource delivers a fixed number of synthetic chunks through the
// callback, reusing one buffer the way a real capture source does. The
// chunks are delivered before Start returns so tests are deterministic.
type fakeSource struct {
	name     string
	rate     int
	chunks   int
	freq     float64
	startErr error

	mu      sync.Mutex
	stopped bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Start(ctx context.Context, onChunk capture.ChunkFunc) (*capture.Handle, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}

	const frames = 1024
	buf := make([]float32, frames)
	chunk := audio.PcmChunk{
		Float32:    buf,
		SampleRate: f.rate,
		Channels:   1,
		Format:     audio.FormatFloat32,
		Layout:     audio.LayoutInterleaved,
	}
	for i := 0; i < f.chunks; i++ {
		for j := range buf {
			n := i*frames + j
			buf[j] = float32(0.5 * math.Sin(2*math.Pi*f.freq*float64(n)/float64(f.rate)))
		}
		onChunk(&chunk)
	}

	stop := func() error {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		return nil
	}
	return capture.NewHandle(stop), nil
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestNewRecorderValidation(t *testing.T) {
	mic := &fakeSource{name: "mic", rate: 16000}
	sys := &fakeSource{name: "sys", rate: 16000}

	if _, err := NewRecorder(testLogger(), nil, 0, mic, sys); err == nil {
		t.Error("Expected error for zero target rate")
	}
	if _, err := NewRecorder(testLogger(), nil, 16000, nil, sys); err == nil {
		t.Error("Expected error for nil mic source")
	}
	if _, err := NewRecorder(testLogger(), nil, 16000, mic, nil); err == nil {
		t.Error("Expected error for nil system source")
	}
}

func TestRecordSession(t *testing.T) {
	// Mic at native 16 kHz, system at 48 kHz to exercise conversion.
	mic := &fakeSource{name: "microphone", rate: 16000, chunks: 32, freq: 440}
	sys := &fakeSource{name: "system-loopback", rate: 48000, chunks: 96, freq: 1000}

	r, err := NewRecorder(testLogger(), nil, 16000, mic, sys)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "session")
	rec, err := r.Start(context.Background(), dir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	info, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !mic.wasStopped() || !sys.wasStopped() {
		t.Error("Expected both sources stopped")
	}
	if info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", info.SampleRate)
	}
	if info.MicPath != filepath.Join(dir, MicFileName) {
		t.Errorf("Unexpected mic path: %q", info.MicPath)
	}
	if info.SystemPath != filepath.Join(dir, SystemFileName) {
		t.Errorf("Unexpected system path: %q", info.SystemPath)
	}

	micSamples, micRate, err := audio.ReadFile(info.MicPath)
	if err != nil {
		t.Fatalf("Failed to read mic file: %v", err)
	}
	if micRate != 16000 {
		t.Errorf("Expected mic file at 16000 Hz, got %d", micRate)
	}
	// All delivered chunks made it to disk before Stop returned.
	if want := 32 * 1024; len(micSamples) != want {
		t.Errorf("Expected %d mic samples, got %d", want, len(micSamples))
	}

	sysSamples, sysRate, err := audio.ReadFile(info.SystemPath)
	if err != nil {
		t.Fatalf("Failed to read system file: %v", err)
	}
	if sysRate != 16000 {
		t.Errorf("Expected system file resampled to 16000 Hz, got %d", sysRate)
	}
	// 96 chunks of 1024 frames at 48 kHz resample to a third as many.
	want := 96 * 1024 / 3
	if len(sysSamples) < want-96 || len(sysSamples) > want+96 {
		t.Errorf("Expected about %d system samples, got %d", want, len(sysSamples))
	}

	wantDur := float64(32*1024) / 16000.0
	if math.Abs(info.Duration-wantDur) > 0.1 {
		t.Errorf("Expected duration near %f, got %f", wantDur, info.Duration)
	}

	// Stop is idempotent and returns the same info.
	again, err := rec.Stop()
	if err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if again != info {
		t.Errorf("Second Stop returned different info: %+v vs %+v", again, info)
	}
}

func TestStartUnwindsOnSystemFailure(t *testing.T) {
	mic := &fakeSource{name: "microphone", rate: 16000, chunks: 4, freq: 440}
	sys := &fakeSource{name: "system-loopback", rate: 16000, startErr: errors.New("no loopback device")}

	r, err := NewRecorder(testLogger(), nil, 16000, mic, sys)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "session")
	if _, err := r.Start(context.Background(), dir); err == nil {
		t.Fatal("Expected error when system capture fails to start")
	}

	if !mic.wasStopped() {
		t.Error("Mic capture must be stopped when system capture fails")
	}

	// Partial files are preserved for recovery, not deleted.
	if _, err := os.Stat(filepath.Join(dir, MicFileName)); err != nil {
		t.Errorf("Expected mic file preserved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, SystemFileName)); err != nil {
		t.Errorf("Expected system file preserved: %v", err)
	}
}

func TestStartMicFailure(t *testing.T) {
	mic := &fakeSource{name: "microphone", rate: 16000, startErr: errors.New("permission denied")}
	sys := &fakeSource{name: "system-loopback", rate: 16000, chunks: 4, freq: 1000}

	r, err := NewRecorder(testLogger(), nil, 16000, mic, sys)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	if _, err := r.Start(context.Background(), filepath.Join(t.TempDir(), "s")); err == nil {
		t.Fatal("Expected error when mic capture fails to start")
	}
}
