package shm

import "errors"

var (
	// ErrTrackingOriginCapacity is returned when devices use more distinct
	// tracking origins than the segment holds.
	ErrTrackingOriginCapacity = errors.New("shm: tracking origin capacity exceeded")

	// ErrDeviceCapacity is returned when more devices are published than
	// the segment holds.
	ErrDeviceCapacity = errors.New("shm: device capacity exceeded")

	// ErrInputCapacity is returned when the devices' inputs do not fit.
	ErrInputCapacity = errors.New("shm: input capacity exceeded")

	// ErrOutputCapacity is returned when the devices' outputs do not fit.
	ErrOutputCapacity = errors.New("shm: output capacity exceeded")

	// ErrNoTrackingOrigin is returned for a device without an origin.
	ErrNoTrackingOrigin = errors.New("shm: device has no tracking origin")

	// ErrBadMagic is returned when a mapped segment does not start with
	// the expected magic.
	ErrBadMagic = errors.New("shm: bad magic")

	// ErrVersionMismatch is returned when a mapped segment has a different
	// layout version.
	ErrVersionMismatch = errors.New("shm: layout version mismatch")

	// ErrSegmentTooSmall is returned when a descriptor maps fewer bytes
	// than the layout needs.
	ErrSegmentTooSmall = errors.New("shm: segment too small")

	// ErrDeviceIndex is returned for a device index outside the table.
	ErrDeviceIndex = errors.New("shm: device index out of range")

	// ErrWaitTimeout is returned when Wait gives up before a new frame.
	ErrWaitTimeout = errors.New("shm: wait frame timed out")
)
