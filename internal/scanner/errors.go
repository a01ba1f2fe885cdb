package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Camera and decoder failures end a session. ErrMutationFailed does not.
var (
	ErrDeviceUnavailable  = errors.New("no camera available")
	ErrPermissionDenied   = errors.New("camera access denied")
	ErrDeviceBusy         = errors.New("camera in use by another process")
	ErrDecoderUnavailable = errors.New("code decoder unavailable")
	ErrMutationFailed     = errors.New("fulfillment update failed")
	ErrHandleReleased     = errors.New("camera handle released")
	ErrSessionActive      = errors.New("scan session already running")

	// ErrNoFrame means the stream is open but has nothing ready yet
	ErrNoFrame = errors.New("no frame ready")
)

// classifyOpenError maps an OS level error from opening a device onto the
// capture taxonomy. Unknown errors count as an unavailable device.
func classifyOpenError(device string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDeviceUnavailable), errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceBusy):
		return err
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, device, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s: %v", ErrDeviceBusy, device, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, device, err)
	}
}

// severity orders capture errors so Acquire reports the most telling one
// when every source fails
func severity(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return 3
	case errors.Is(err, ErrDeviceBusy):
		return 2
	case errors.Is(err, ErrDeviceUnavailable):
		return 1
	default:
		return 0
	}
}
