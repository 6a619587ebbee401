package montecarlo

import (
	guda "github.com/LynnColeArt/guda-mc"
)

// EstimationError is the error type returned by Estimate.
type EstimationError = guda.GUDAError

const op = "Estimate"

func invalidArgument(msg string) error {
	return guda.NewInvalidArgError(op, msg)
}

func deviceUnavailable(msg string, err error) error {
	return guda.NewDeviceError(op, msg, err)
}

func deviceTimeout(err error) error {
	return guda.NewTimeoutError(op, "completion barrier not reached in time", err)
}

// IsInvalidArgument reports whether err rejected the inputs before any
// device resource was touched.
func IsInvalidArgument(err error) bool {
	return guda.IsInvalidArgError(err)
}

// IsDeviceUnavailable reports whether the device could not allocate the
// results buffer or launch the grid.
func IsDeviceUnavailable(err error) bool {
	return guda.IsDeviceError(err)
}

// IsDeviceTimeout reports whether the wait on the completion barrier
// expired.
func IsDeviceTimeout(err error) bool {
	return guda.IsTimeoutError(err)
}

func outcome(err error) string {
	switch {
	case IsInvalidArgument(err):
		return "invalid_argument"
	case IsDeviceTimeout(err):
		return "timeout"
	default:
		return "device_unavailable"
	}
}
