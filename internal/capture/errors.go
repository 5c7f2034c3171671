package capture

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the capture error taxonomy. Callers match them with
// errors.Is and use the wrapped message for remediation guidance.
var (
	// ErrPermissionDenied means the OS refused access to a capture class.
	// The wrapped message names the specific permission (microphone vs.
	// system audio), since the two require different remediation.
	ErrPermissionDenied = errors.New("audio capture permission denied")

	// ErrDeviceUnavailable means no usable device was found or the device
	// tap could not be created. The underlying platform error is wrapped
	// for diagnostics.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// PermissionClass identifies which OS permission a capture source needs.
type PermissionClass int

const (
	// PermissionMicrophone is the input-device recording permission.
	PermissionMicrophone PermissionClass = iota
	// PermissionSystemAudio is the system-output tap permission, distinct
	// from microphone access on every supported platform.
	PermissionSystemAudio
)

// String returns the permission class name used in error messages.
func (c PermissionClass) String() string {
	switch c {
	case PermissionMicrophone:
		return "microphone"
	case PermissionSystemAudio:
		return "system-audio"
	default:
		return "unknown"
	}
}

// remediation returns the user-facing hint for a denied permission class.
func (c PermissionClass) remediation() string {
	switch c {
	case PermissionMicrophone:
		return "grant microphone access to this application in the OS privacy settings"
	case PermissionSystemAudio:
		return "grant system-audio (audio capture/screen recording) access in the OS privacy settings"
	default:
		return "check the OS audio privacy settings"
	}
}

// permissionDenied builds a terminal permission error for the given class.
func permissionDenied(class PermissionClass, cause error) error {
	return fmt.Errorf("%w: %s permission not granted (%s): %v",
		ErrPermissionDenied, class, class.remediation(), cause)
}

// deviceUnavailable builds a terminal device error carrying the platform cause.
func deviceUnavailable(detail string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, detail, cause)
}

// classifyOpenError maps a PortAudio stream-open failure onto the taxonomy.
// PortAudio reports permission refusals as generic host errors, so the
// classification is textual.
func classifyOpenError(class PermissionClass, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not authorized") || strings.Contains(msg, "access") {
		return permissionDenied(class, err)
	}
	return deviceUnavailable(fmt.Sprintf("failed to open %s stream", class), err)
}
