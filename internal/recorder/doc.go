// Package recorder orchestrates one dual-channel recording: it starts the
// microphone and system-output sources, converts their native chunks to
// the canonical stream format inside the capture callbacks, and appends
// them to per-channel WAV files. Stopping is idempotent and ordered so the
// final header rewrite can never race a write.
package recorder
