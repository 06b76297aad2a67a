package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceExists) {
//	    // another writer already owns this IP
//	}
var (
	// ErrDeviceNotFound is returned when a device ID or IP does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose IP (or ID)
	// is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidIP is returned when a device IP is not a valid address.
	ErrInvalidIP = errors.New("device: invalid ip")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidWatchParams is returned when timeout or interval are not positive.
	ErrInvalidWatchParams = errors.New("device: invalid watch parameters")

	// ErrSystemConfigNotFound is returned when the singleton configuration
	// row has not been created yet.
	ErrSystemConfigNotFound = errors.New("device: system config not found")

	// ErrInvalidSystemConfig is returned when system config validation fails.
	ErrInvalidSystemConfig = errors.New("device: invalid system config")
)
