package echo

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Params holds the tunable suppression parameters. The defaults were tuned
// empirically against recorded meetings; treat them as configuration, not
// derived constants.
type Params struct {
	// MinStrength is the minimum echo correlation required before linear
	// subtraction runs.
	MinStrength float64 `yaml:"min_strength"`
	// MaxLagSeconds bounds the delay search; ~200 ms covers the physically
	// plausible speaker-to-mic round trip.
	MaxLagSeconds float64 `yaml:"max_lag_seconds"`
	// ProbeWindowSeconds is the length of the correlation probe window.
	ProbeWindowSeconds float64 `yaml:"probe_window_seconds"`
	// MaxSubtractScale caps the subtraction scale to avoid inversion artifacts.
	MaxSubtractScale float64 `yaml:"max_subtract_scale"`
	// FrameSeconds is the energy-gate frame length.
	FrameSeconds float64 `yaml:"frame_seconds"`
	// SysMedianMultiplier scales the median non-silent system RMS into the
	// system-activity threshold.
	SysMedianMultiplier float64 `yaml:"sys_median_multiplier"`
	// MicFloorMultiplier scales the median non-silent mic RMS into the mic
	// noise floor used for frame classification.
	MicFloorMultiplier float64 `yaml:"mic_floor_multiplier"`
	// RMSFloor is the absolute floor for both adaptive thresholds.
	RMSFloor float64 `yaml:"rms_floor"`
	// LocalSpeakerRatio is how far above its noise floor the mic must be,
	// while also louder than the system, to keep a frame untouched.
	LocalSpeakerRatio float64 `yaml:"local_speaker_ratio"`
	// MixedGain attenuates frames with moderate local energy.
	MixedGain float64 `yaml:"mixed_gain"`
	// ResidualGain attenuates frames classified as pure echo residual.
	ResidualGain float64 `yaml:"residual_gain"`
	// CrossfadeSeconds is the linear ramp applied at gain transitions.
	CrossfadeSeconds float64 `yaml:"crossfade_seconds"`
	// MinInputSeconds below which cancellation is skipped entirely.
	MinInputSeconds float64 `yaml:"min_input_seconds"`
}

// DefaultParams returns the tuned default parameters.
func DefaultParams() Params {
	return Params{
		MinStrength:         0.05,
		MaxLagSeconds:       0.200,
		ProbeWindowSeconds:  5.0,
		MaxSubtractScale:    0.9,
		FrameSeconds:        0.020,
		SysMedianMultiplier: 0.3,
		MicFloorMultiplier:  0.5,
		RMSFloor:            0.003,
		LocalSpeakerRatio:   2.5,
		MixedGain:           0.4,
		ResidualGain:        0.05,
		CrossfadeSeconds:    0.005,
		MinInputSeconds:     1.0,
	}
}

// Validate checks parameter sanity.
func (p *Params) Validate() error {
	if p.MinStrength < 0 || p.MinStrength > 1 {
		return fmt.Errorf("min_strength must be between 0 and 1, got %f", p.MinStrength)
	}
	if p.MaxLagSeconds <= 0 {
		return fmt.Errorf("max_lag_seconds must be positive, got %f", p.MaxLagSeconds)
	}
	if p.ProbeWindowSeconds <= 0 {
		return fmt.Errorf("probe_window_seconds must be positive, got %f", p.ProbeWindowSeconds)
	}
	if p.MaxSubtractScale <= 0 || p.MaxSubtractScale > 1 {
		return fmt.Errorf("max_subtract_scale must be in (0, 1], got %f", p.MaxSubtractScale)
	}
	if p.FrameSeconds <= 0 {
		return fmt.Errorf("frame_seconds must be positive, got %f", p.FrameSeconds)
	}
	if p.MixedGain < 0 || p.MixedGain > 1 || p.ResidualGain < 0 || p.ResidualGain > 1 {
		return fmt.Errorf("gains must be between 0 and 1, got mixed=%f residual=%f", p.MixedGain, p.ResidualGain)
	}
	if p.MinInputSeconds <= 0 {
		return fmt.Errorf("min_input_seconds must be positive, got %f", p.MinInputSeconds)
	}
	return nil
}

// Stats reports what one Process run did, for diagnostics.
type Stats struct {
	Skipped            bool    `json:"skipped"`
	DelaySamples       int     `json:"delay_samples"`
	DelaySeconds       float64 `json:"delay_seconds"`
	Strength           float64 `json:"strength"`
	SubtractionApplied bool    `json:"subtraction_applied"`
	TotalFrames        int     `json:"total_frames"`
	SuppressedFrames   int     `json:"suppressed_frames"`
	SuppressedFraction float64 `json:"suppressed_fraction"`
}

// Canceller removes system-audio bleed from a complete microphone recording.
// It is a batch, single-goroutine operation over in-memory sample arrays;
// inputs are never mutated.
type Canceller struct {
	params     Params
	sampleRate int
	kernel     Kernel
	logger     *slog.Logger
}

// NewCanceller creates a canceller for channels recorded at sampleRate.
func NewCanceller(logger *slog.Logger, sampleRate int, params Params) (*Canceller, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("echo params: %w", err)
	}
	return &Canceller{
		params:     params,
		sampleRate: sampleRate,
		kernel:     ScalarKernel{},
		logger:     logger,
	}, nil
}

// SetKernel swaps the numeric kernel (e.g. for a vectorized implementation).
func (c *Canceller) SetKernel(k Kernel) {
	c.kernel = k
}

// EstimateDelay cross-correlates a probe window of the mic signal against
// the system signal at candidate lags from 0 up to the configured maximum
// and returns the best lag in samples together with its normalized
// correlation (the echo strength, in [0, 1]).
//
// The search walks lags in 1 ms steps; the returned lag is accurate to one
// step, which the gate stage tolerates.
func (c *Canceller) EstimateDelay(mic, sys []float32) (int, float64) {
	n := min(len(mic), len(sys))
	maxLag := int(c.params.MaxLagSeconds * float64(c.sampleRate))
	window := int(c.params.ProbeWindowSeconds * float64(c.sampleRate))

	// Probe a representative window starting a third of the way in,
	// but never before maxLag so every candidate lag stays in range.
	start := n / 3
	if start < maxLag {
		start = maxLag
	}
	if start+window > n {
		window = n - start
	}
	if window <= 0 {
		return 0, 0
	}

	micWin := mic[start : start+window]
	micEnergy := c.kernel.Dot(micWin, micWin)
	if micEnergy == 0 {
		return 0, 0
	}

	step := c.sampleRate / 1000
	if step < 1 {
		step = 1
	}

	bestLag, bestCorr, bestScale := 0, 0.0, 0.0
	for lag := 0; lag <= maxLag; lag += step {
		sysWin := sys[start-lag : start-lag+window]
		sysEnergy := c.kernel.Dot(sysWin, sysWin)
		if sysEnergy == 0 {
			continue
		}
		dot := math.Abs(c.kernel.Dot(micWin, sysWin))
		corr := dot / math.Sqrt(micEnergy*sysEnergy)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
			bestScale = dot / sysEnergy
		}
	}

	// The normalized correlation locates the lag but saturates at 1 for a
	// clean scaled copy; the least-squares projection onto the system
	// signal recovers the actual bleed amplitude, which is what both the
	// subtraction scale and the strength threshold need.
	strength := math.Min(bestScale, 1.0)
	return bestLag, strength
}

// Process returns a cleaned copy of mic with system-audio bleed suppressed.
// Recordings shorter than the configured minimum are returned as an
// unmodified copy with Stats.Skipped set; that is a degenerate case, not
// an error.
func (c *Canceller) Process(mic, sys []float32) ([]float32, Stats, error) {
	cleaned := make([]float32, len(mic))
	copy(cleaned, mic)

	n := min(len(mic), len(sys))
	stats := Stats{}

	if n < int(c.params.MinInputSeconds*float64(c.sampleRate)) {
		stats.Skipped = true
		c.logger.Info("Echo cancellation skipped, input too short",
			slog.Int("samples", n),
			slog.Int("sample_rate", c.sampleRate),
		)
		return cleaned, stats, nil
	}

	lag, strength := c.EstimateDelay(mic, sys)
	stats.DelaySamples = lag
	stats.DelaySeconds = float64(lag) / float64(c.sampleRate)
	stats.Strength = strength

	if strength >= c.params.MinStrength {
		scale := float32(math.Min(strength, c.params.MaxSubtractScale))
		for i := lag; i < n; i++ {
			cleaned[i] -= scale * sys[i-lag]
		}
		stats.SubtractionApplied = true
	}

	c.gate(cleaned, sys, n, &stats)

	stats.TotalFrames = c.numFrames(n)
	if stats.TotalFrames > 0 {
		stats.SuppressedFraction = float64(stats.SuppressedFrames) / float64(stats.TotalFrames)
	}

	c.logger.Info("Echo cancellation done",
		slog.Float64("delay_ms", stats.DelaySeconds*1000),
		slog.Float64("strength", stats.Strength),
		slog.Bool("subtraction", stats.SubtractionApplied),
		slog.Int("suppressed_frames", stats.SuppressedFrames),
		slog.Int("total_frames", stats.TotalFrames),
	)
	return cleaned, stats, nil
}

func (c *Canceller) frameSize() int {
	return int(c.params.FrameSeconds * float64(c.sampleRate))
}

func (c *Canceller) numFrames(n int) int {
	fs := c.frameSize()
	if fs <= 0 {
		return 0
	}
	return n / fs
}

// gate applies the adaptive per-frame energy gate to cleaned[:n] in place.
func (c *Canceller) gate(cleaned, sys []float32, n int, stats *Stats) {
	frameSize := c.frameSize()
	numFrames := c.numFrames(n)
	if numFrames == 0 {
		return
	}

	micRMS := make([]float64, numFrames)
	sysRMS := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * frameSize
		micRMS[i] = c.kernel.RMS(cleaned[start : start+frameSize])
		sysRMS[i] = c.kernel.RMS(sys[start : start+frameSize])
	}

	sysThreshold := math.Max(medianNonSilent(sysRMS)*c.params.SysMedianMultiplier, c.params.RMSFloor)
	micFloor := math.Max(medianNonSilent(micRMS)*c.params.MicFloorMultiplier, c.params.RMSFloor)

	gains := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		gains[i] = 1.0
		if sysRMS[i] <= sysThreshold {
			continue
		}
		switch {
		case micRMS[i] > c.params.LocalSpeakerRatio*micFloor && micRMS[i] > sysRMS[i]:
			// Local speaker clearly talking over the playback: keep.
		case micRMS[i] > micFloor:
			gains[i] = c.params.MixedGain
		default:
			gains[i] = c.params.ResidualGain
		}
	}

	gains = medianFilter3(gains)

	for i := 0; i < numFrames; i++ {
		if gains[i] < 1.0 {
			stats.SuppressedFrames++
		}
	}

	c.applyGains(cleaned, gains, frameSize)
}

// applyGains multiplies each frame by its gain, ramping linearly over the
// crossfade length whenever the gain changes between frames. Gains always
// read the pre-gain sample, so no frame is ever scaled twice.
func (c *Canceller) applyGains(cleaned []float32, gains []float64, frameSize int) {
	fade := int(c.params.CrossfadeSeconds * float64(c.sampleRate))
	if fade > frameSize {
		fade = frameSize
	}

	prev := 1.0
	for i, gain := range gains {
		start := i * frameSize
		for j := 0; j < frameSize; j++ {
			g := gain
			if j < fade && prev != gain {
				t := float64(j) / float64(fade)
				g = prev + (gain-prev)*t
			}
			cleaned[start+j] = float32(float64(cleaned[start+j]) * g)
		}
		prev = gain
	}
}

// medianNonSilent returns the median of the strictly positive values,
// or 0 when every value is silent.
func medianNonSilent(values []float64) float64 {
	active := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return 0
	}
	sort.Float64s(active)
	mid := len(active) / 2
	if len(active)%2 == 1 {
		return active[mid]
	}
	return (active[mid-1] + active[mid]) / 2
}

// medianFilter3 smooths a gain sequence with a 3-point median so isolated
// spurious gates do not produce audible single-frame dropouts.
func medianFilter3(gains []float64) []float64 {
	if len(gains) < 3 {
		return gains
	}
	out := make([]float64, len(gains))
	out[0] = gains[0]
	out[len(gains)-1] = gains[len(gains)-1]
	for i := 1; i < len(gains)-1; i++ {
		out[i] = median3(gains[i-1], gains[i], gains[i+1])
	}
	return out
}

func median3(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}
