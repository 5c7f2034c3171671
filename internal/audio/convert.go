package audio

import (
	"fmt"
	"math"
)

// Converter turns capture-native chunks into the canonical stream format:
// mono, 16-bit signed PCM, little-endian, at the configured target rate.
//
// Converter reuses internal scratch buffers between calls so that no
// allocation happens on the capture hot path once the buffers have grown
// to the largest chunk size seen. It is not safe for concurrent use;
// each capture source owns its own Converter.
type Converter struct {
	targetRate int

	mono []float32 // downmixed mono frames at the source rate
	res  []float32 // resampled frames at the target rate
	out  []byte    // encoded int16 little-endian bytes
}

// NewConverter creates a converter producing mono 16-bit PCM at targetRate.
func NewConverter(targetRate int) (*Converter, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("target rate must be positive, got %d", targetRate)
	}
	return &Converter{targetRate: targetRate}, nil
}

// TargetRate returns the output sample rate.
func (cv *Converter) TargetRate() int {
	return cv.targetRate
}

// Convert processes one chunk and returns the converted PCM bytes.
// The returned slice is valid only until the next Convert call.
func (cv *Converter) Convert(c *PcmChunk) ([]byte, error) {
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("chunk sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return nil, fmt.Errorf("chunk channel count must be positive, got %d", c.Channels)
	}

	frames := c.Frames()
	if frames == 0 {
		return nil, nil
	}

	mono, err := cv.downmix(c, frames)
	if err != nil {
		return nil, err
	}

	mono = cv.resample(mono, c.SampleRate)

	cv.out = growBytes(cv.out, len(mono)*2)
	for i, s := range mono {
		v := encodeSample(s)
		cv.out[i*2] = byte(v)
		cv.out[i*2+1] = byte(v >> 8)
	}
	return cv.out, nil
}

// downmix produces mono float frames from the chunk, averaging channel
// pairs for multi-channel input and handling both buffer layouts.
func (cv *Converter) downmix(c *PcmChunk, frames int) ([]float32, error) {
	cv.mono = growFloats(cv.mono, frames)
	mono := cv.mono

	switch c.Format {
	case FormatFloat32:
		if want := frames * c.Channels; len(c.Float32) < want {
			return nil, fmt.Errorf("short float chunk: have %d samples, need %d", len(c.Float32), want)
		}
		switch {
		case c.Channels == 1:
			copy(mono, c.Float32[:frames])
		case c.Layout == LayoutPlanar:
			for i := 0; i < frames; i++ {
				var sum float32
				for ch := 0; ch < c.Channels; ch++ {
					sum += c.Float32[ch*frames+i]
				}
				mono[i] = sum / float32(c.Channels)
			}
		default:
			for i := 0; i < frames; i++ {
				var sum float32
				for ch := 0; ch < c.Channels; ch++ {
					sum += c.Float32[i*c.Channels+ch]
				}
				mono[i] = sum / float32(c.Channels)
			}
		}
	case FormatInt16:
		if want := frames * c.Channels; len(c.Int16) < want {
			return nil, fmt.Errorf("short int16 chunk: have %d samples, need %d", len(c.Int16), want)
		}
		switch {
		case c.Channels == 1:
			for i := 0; i < frames; i++ {
				mono[i] = float32(c.Int16[i]) / 32768.0
			}
		case c.Layout == LayoutPlanar:
			for i := 0; i < frames; i++ {
				var sum float32
				for ch := 0; ch < c.Channels; ch++ {
					sum += float32(c.Int16[ch*frames+i]) / 32768.0
				}
				mono[i] = sum / float32(c.Channels)
			}
		default:
			for i := 0; i < frames; i++ {
				var sum float32
				for ch := 0; ch < c.Channels; ch++ {
					sum += float32(c.Int16[i*c.Channels+ch]) / 32768.0
				}
				mono[i] = sum / float32(c.Channels)
			}
		}
	default:
		return nil, fmt.Errorf("unknown sample format %d", c.Format)
	}

	return mono, nil
}

// resample maps mono frames from srcRate to the target rate using
// nearest-neighbor index mapping. Cheap and adequate for speech
// recognition input; not intended for playback fidelity.
func (cv *Converter) resample(in []float32, srcRate int) []float32 {
	if srcRate == cv.targetRate {
		return in
	}

	outFrames := int(math.Round(float64(len(in)) * float64(cv.targetRate) / float64(srcRate)))
	if outFrames <= 0 {
		return nil
	}

	cv.res = growFloats(cv.res, outFrames)
	out := cv.res

	ratio := float64(srcRate) / float64(cv.targetRate)
	last := len(in) - 1
	for i := 0; i < outFrames; i++ {
		src := int(math.Round(float64(i) * ratio))
		if src > last {
			src = last
		}
		out[i] = in[src]
	}
	return out
}

// encodeSample converts one float sample to int16 with symmetric clamping.
func encodeSample(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767.0)
}

func growFloats(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

func growBytes(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}
