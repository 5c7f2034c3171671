package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// headerSize is the size of the canonical RIFF/WAVE header written by Writer.
const headerSize = 44

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

func newHeader(sampleRate, channels int, dataSize uint32) WAVHeader {
	bitsPerSample := uint16(16)
	numChannels := uint16(channels)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// Writer appends PCM bytes to a growing WAV file. The header is written
// immediately on open with a zero data length and rewritten with the true
// size on Close, so a crash mid-recording still leaves a playable file.
//
// Writer is not safe for concurrent use. The capture path must guarantee
// that no Write call is in flight once Close begins; see recorder.Stop.
type Writer struct {
	file       *os.File
	path       string
	sampleRate int
	channels   int
	dataBytes  uint32
	closed     bool
}

// NewWriter creates the file at path and writes the initial header.
func NewWriter(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("channel count must be at least 1, got %d", channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file %s: %w", path, err)
	}

	w := &Writer{
		file:       f,
		path:       path,
		sampleRate: sampleRate,
		channels:   channels,
	}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	header := newHeader(w.sampleRate, w.channels, w.dataBytes)
	buf := bytes.NewBuffer(make([]byte, 0, headerSize))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to encode WAV header: %w", err)
	}
	if _, err := w.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	return nil
}

// Write appends raw little-endian int16 PCM bytes to the file.
func (w *Writer) Write(pcm []byte) error {
	if w.closed {
		return fmt.Errorf("write to closed WAV writer %s", w.path)
	}
	if len(pcm) == 0 {
		return nil
	}
	if _, err := w.file.WriteAt(pcm, int64(headerSize)+int64(w.dataBytes)); err != nil {
		return fmt.Errorf("failed to append PCM data to %s: %w", w.path, err)
	}
	w.dataBytes += uint32(len(pcm))
	return nil
}

// Close rewrites the header with the final data size and closes the file.
// Close is idempotent; calls after the first return nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to sync WAV file %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close WAV file %s: %w", w.path, err)
	}
	return nil
}

// Path returns the file path the writer was opened with.
func (w *Writer) Path() string {
	return w.path
}

// BytesWritten returns the number of PCM data bytes appended so far.
func (w *Writer) BytesWritten() uint32 {
	return w.dataBytes
}

// Duration returns the audio duration written so far, in seconds.
func (w *Writer) Duration() float64 {
	bytesPerSecond := w.sampleRate * w.channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(w.dataBytes) / float64(bytesPerSecond)
}

// WriteFile writes mono float32 samples to path as a 16-bit PCM WAV file,
// clamping samples to [-1.0, 1.0].
func WriteFile(path string, samples []float32, sampleRate int) error {
	w, err := NewWriter(path, sampleRate, 1)
	if err != nil {
		return err
	}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := encodeSample(s)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	if err := w.Write(pcm); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadFile loads a mono 16-bit PCM WAV file and returns the samples as
// float32 in [-1.0, 1.0) together with the file's sample rate.
func ReadFile(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV file %s: %w", path, err)
	}

	samples, rate, err := decodePCM(data)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid WAV file %s: %w", path, err)
	}
	return samples, rate, nil
}

func decodePCM(data []byte) ([]float32, int, error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("data too short: need at least %d bytes, got %d", headerSize, len(data))
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to parse header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("missing data chunk")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format %d (only PCM is supported)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d (only 16-bit is supported)", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d (only mono is supported)", header.NumChannels)
	}
	if header.SampleRate == 0 {
		return nil, 0, fmt.Errorf("invalid sample rate 0")
	}

	payload := data[headerSize:]
	dataSize := int(header.Subchunk2Size)
	if dataSize > len(payload) || dataSize == 0 {
		// Header declares more than the file holds (truncated write) or
		// still carries the initial zero size (crash before Close);
		// recover what is actually there.
		dataSize = len(payload)
	}
	numSamples := dataSize / 2

	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		v := int16(uint16(payload[i*2]) | uint16(payload[i*2+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return samples, int(header.SampleRate), nil
}
