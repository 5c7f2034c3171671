// Package transcription invokes the external speech recognizer and runs
// the post-recording pipeline: echo-clean the microphone channel, recognize
// both channels, and build the merged speaker-labeled transcript.
// Recognition itself happens in an external ASR engine reached over HTTP;
// this package only transports audio and interprets the token timings it
// gets back.
package transcription
