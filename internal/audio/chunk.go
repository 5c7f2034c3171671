package audio

// SampleFormat identifies the in-memory sample encoding of a capture chunk.
type SampleFormat int

const (
	// FormatFloat32 is 32-bit IEEE float samples in [-1.0, 1.0].
	FormatFloat32 SampleFormat = iota
	// FormatInt16 is 16-bit signed little-endian PCM samples.
	FormatInt16
)

// Layout identifies how multi-channel sample data is arranged.
type Layout int

const (
	// LayoutInterleaved stores channels sample-by-sample: L R L R ...
	LayoutInterleaved Layout = iota
	// LayoutPlanar stores each channel as a contiguous plane.
	LayoutPlanar
)

// PcmChunk is one buffer of audio as delivered by a capture callback.
// Exactly one of Float32 or Int16 is populated, matching Format.
// Chunks are ephemeral: the underlying buffers are owned by the capture
// layer and must not be retained after the callback returns.
type PcmChunk struct {
	Float32    []float32
	Int16      []int16
	SampleRate int
	Channels   int
	Format     SampleFormat
	Layout     Layout
}

// Frames returns the number of sample frames in the chunk.
func (c *PcmChunk) Frames() int {
	n := len(c.Float32)
	if c.Format == FormatInt16 {
		n = len(c.Int16)
	}
	if c.Channels <= 1 {
		return n
	}
	return n / c.Channels
}
