// Package echo suppresses speaker bleed in the microphone channel using the
// system-output channel as reference. It estimates the acoustic delay by
// normalized cross-correlation, subtracts a delay-shifted scaled copy of the
// system signal, then applies an adaptive per-frame energy gate with median
// smoothing and short crossfades at gain transitions.
package echo
