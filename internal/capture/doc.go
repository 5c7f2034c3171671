// Package capture provides live audio sources for the microphone and the
// system audio output. Sources are selected by capability probing over the
// PortAudio device list and deliver native-format PCM chunks to a callback
// until stopped. Stopping is idempotent and blocks until the platform
// guarantees no further callbacks will be invoked.
package capture
