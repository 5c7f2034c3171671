// Package segment turns recognizer output into speaker-labeled transcript
// segments. Token timings are grouped at sentence boundaries between a
// minimum and maximum segment duration; plain text without timing falls
// back to sentence splitting with evenly distributed timestamps. Both
// speakers' segments merge into one chronological transcript with
// aggregate confidence and real-time-factor statistics.
package segment
