package echo

import (
	"io"
	"log/slog"
	"math"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noise produces a deterministic broadband test signal. A pure tone is no
// good for delay estimation tests because its autocorrelation repeats at
// every period.
func noise(n int, seed uint32) []float32 {
	out := make([]float32, n)
	state := seed
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = (float32(state>>8)/float32(1<<24))*2 - 1
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestNewCancellerValidation(t *testing.T) {
	if _, err := NewCanceller(testLogger(), 0, DefaultParams()); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	bad := DefaultParams()
	bad.MinStrength = 1.5
	if _, err := NewCanceller(testLogger(), 16000, bad); err == nil {
		t.Error("Expected error for min_strength > 1")
	}

	bad = DefaultParams()
	bad.MaxSubtractScale = 0
	if _, err := NewCanceller(testLogger(), 16000, bad); err == nil {
		t.Error("Expected error for zero max_subtract_scale")
	}

	if _, err := NewCanceller(testLogger(), 16000, DefaultParams()); err != nil {
		t.Errorf("Default params should validate: %v", err)
	}
}

func TestProcessSkipsShortInput(t *testing.T) {
	c, err := NewCanceller(testLogger(), 16000, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	mic := noise(8000, 1) // 0.5 s, below the 1 s minimum
	sys := noise(8000, 2)

	cleaned, stats, err := c.Process(mic, sys)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !stats.Skipped {
		t.Error("Expected Skipped for input below minimum length")
	}
	for i := range mic {
		if cleaned[i] != mic[i] {
			t.Fatalf("Skipped run must not modify samples, sample %d changed", i)
		}
	}
}

func TestProcessSilenceUntouched(t *testing.T) {
	c, err := NewCanceller(testLogger(), 16000, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	mic := make([]float32, 32000)
	sys := make([]float32, 32000)

	cleaned, stats, err := c.Process(mic, sys)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.Skipped {
		t.Error("Two seconds of input should not be skipped")
	}
	if stats.SubtractionApplied {
		t.Error("Silence must not trigger subtraction")
	}
	if stats.SuppressedFrames != 0 {
		t.Errorf("Silence must not gate frames, got %d", stats.SuppressedFrames)
	}
	for i := range cleaned {
		if cleaned[i] != 0 {
			t.Fatalf("Expected silence out, sample %d = %f", i, cleaned[i])
		}
	}
}

func TestEstimateDelayFindsLagAndStrength(t *testing.T) {
	const rate = 16000
	c, err := NewCanceller(testLogger(), rate, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	// mic is a half-amplitude copy of sys delayed by 100 ms.
	const lag = 1600
	const scale = 0.5
	sys := noise(10*rate, 7)
	mic := make([]float32, len(sys))
	for i := lag; i < len(mic); i++ {
		mic[i] = scale * sys[i-lag]
	}

	gotLag, gotStrength := c.EstimateDelay(mic, sys)

	// The search walks in 1 ms steps, so allow one step of slack.
	step := rate / 1000
	if gotLag < lag-step || gotLag > lag+step {
		t.Errorf("Expected lag near %d samples, got %d", lag, gotLag)
	}
	if math.Abs(gotStrength-scale) > 0.1 {
		t.Errorf("Expected strength near %f, got %f", scale, gotStrength)
	}
}

func TestEstimateDelaySilentInputs(t *testing.T) {
	c, err := NewCanceller(testLogger(), 16000, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	lag, strength := c.EstimateDelay(make([]float32, 160000), make([]float32, 160000))
	if lag != 0 || strength != 0 {
		t.Errorf("Expected zero lag and strength for silence, got lag=%d strength=%f", lag, strength)
	}
}

func TestProcessSuppressesEchoKeepsLocalSpeech(t *testing.T) {
	const rate = 16000
	c, err := NewCanceller(testLogger(), rate, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	// Ten seconds: remote speech (1 kHz tone) plays over the speakers
	// during seconds 2-4 and bleeds into the mic at half amplitude with a
	// 50 ms delay; the local speaker talks (440 Hz tone) during seconds 6-8.
	n := 10 * rate
	sys := make([]float32, n)
	mic := make([]float32, n)
	for i := 2 * rate; i < 4*rate; i++ {
		sys[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/rate))
	}
	const echoDelay = rate / 20
	for i := echoDelay; i < n; i++ {
		mic[i] += 0.5 * sys[i-echoDelay]
	}
	for i := 6 * rate; i < 8*rate; i++ {
		mic[i] += float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	cleaned, stats, err := c.Process(mic, sys)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.Skipped {
		t.Fatal("Ten seconds of input should not be skipped")
	}
	if !stats.SubtractionApplied {
		t.Error("Expected subtraction for strongly correlated echo")
	}
	if stats.SuppressedFrames == 0 {
		t.Error("Expected some frames gated in the echo-only region")
	}

	// Echo-only region is strongly attenuated.
	echoBefore := rms(mic[int(2.5*rate):int(3.5*rate)])
	echoAfter := rms(cleaned[int(2.5*rate):int(3.5*rate)])
	if echoAfter > 0.2*echoBefore {
		t.Errorf("Echo region barely attenuated: %f -> %f", echoBefore, echoAfter)
	}

	// Local speech region passes through unchanged.
	speechBefore := rms(mic[int(6.5*rate):int(7.5*rate)])
	speechAfter := rms(cleaned[int(6.5*rate):int(7.5*rate)])
	if math.Abs(speechAfter-speechBefore) > 0.01*speechBefore {
		t.Errorf("Local speech region modified: %f -> %f", speechBefore, speechAfter)
	}

	// Inputs are never mutated.
	idx := int(2.5 * rate)
	if want := 0.5 * sys[idx-echoDelay]; mic[idx] != want {
		t.Error("Process must not modify the input mic slice")
	}
}

func TestProcessHandlesLengthMismatch(t *testing.T) {
	const rate = 16000
	c, err := NewCanceller(testLogger(), rate, DefaultParams())
	if err != nil {
		t.Fatalf("NewCanceller failed: %v", err)
	}

	// Mic runs two seconds longer than system; the overhang passes through.
	sys := noise(8*rate, 3)
	mic := make([]float32, 10*rate)
	for i := 0; i < 8*rate; i++ {
		mic[i] = 0.4 * sys[i]
	}
	for i := 8 * rate; i < len(mic); i++ {
		mic[i] = 0.2
	}

	cleaned, _, err := c.Process(mic, sys)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(cleaned) != len(mic) {
		t.Fatalf("Expected output length %d, got %d", len(mic), len(cleaned))
	}
	for i := 8 * rate; i < len(mic); i++ {
		if cleaned[i] != mic[i] {
			t.Fatalf("Overhang sample %d modified: %f -> %f", i, mic[i], cleaned[i])
		}
	}
}

func TestMedianFilter3(t *testing.T) {
	in := []float64{1, 1, 0.05, 1, 1}
	out := medianFilter3(in)
	if out[2] != 1 {
		t.Errorf("Isolated dip should be smoothed away, got %f", out[2])
	}

	in = []float64{1, 0.05, 0.05, 0.05, 1}
	out = medianFilter3(in)
	if out[2] != 0.05 {
		t.Errorf("Sustained gate should survive filtering, got %f", out[2])
	}

	short := []float64{1, 0.05}
	if got := medianFilter3(short); len(got) != 2 {
		t.Errorf("Short input should pass through, got %v", got)
	}
}

func TestMedianNonSilent(t *testing.T) {
	if got := medianNonSilent([]float64{0, 0, 0}); got != 0 {
		t.Errorf("All-silent input should give 0, got %f", got)
	}
	if got := medianNonSilent([]float64{0, 0.25, 0.75, 0}); got != 0.5 {
		t.Errorf("Expected median 0.5, got %f", got)
	}
	if got := medianNonSilent([]float64{0.1, 0.5, 0.9}); got != 0.5 {
		t.Errorf("Expected median 0.5, got %f", got)
	}
}
