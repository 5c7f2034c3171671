// Package metrics defines the Prometheus metrics of the recording and
// transcription pipeline and an optional HTTP listener exposing them.
package metrics
