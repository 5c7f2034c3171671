// Package config provides YAML configuration loading and validation for
// the recorder core: audio format, capture device selection, echo
// cancellation parameters, segmentation, recognizer endpoint, metrics
// listener and logging.
package config
