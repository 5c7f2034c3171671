// Package audio handles PCM format conversion and WAV file I/O.
// It converts capture-native chunks (float/int16, mono/stereo, interleaved
// or planar, arbitrary rate) to the canonical mono 16-bit PCM stream and
// writes it to crash-safe streaming WAV files with a rewritable header.
package audio
