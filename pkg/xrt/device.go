package xrt

import "fmt"

// DeviceName identifies the kind of a device.
type DeviceName uint32

const (
	DeviceGenericHMD DeviceName = iota + 1
	DeviceSimpleController
	DeviceGenericTracker
)

// String returns the device name for logs.
func (n DeviceName) String() string {
	switch n {
	case DeviceGenericHMD:
		return "GenericHMD"
	case DeviceSimpleController:
		return "SimpleController"
	case DeviceGenericTracker:
		return "GenericTracker"
	default:
		return fmt.Sprintf("DeviceName(%d)", uint32(n))
	}
}

// TrackingType is the tracking technology behind an origin.
type TrackingType uint32

const (
	TrackingTypeNone TrackingType = iota
	TrackingTypeRGB
	TrackingTypeLighthouse
	TrackingTypeOther
)

// TrackingOrigin is the space a device reports poses in. Devices sharing
// a tracking system return the same *TrackingOrigin; identity, not value,
// decides whether two devices share an origin.
type TrackingOrigin struct {
	Name   string
	Type   TrackingType
	Offset Pose
}

// InputName identifies an input component, e.g. a trigger or a grip pose.
type InputName uint32

const (
	InputGenericHeadPose InputName = iota + 1
	InputSimpleSelectClick
	InputSimpleMenuClick
	InputSimpleGripPose
	InputSimpleAimPose
	InputGenericTrackerPose
)

// OutputName identifies an output component such as a haptic actuator.
type OutputName uint32

const (
	OutputSimpleVibration OutputName = iota + 1
)

// InputValue is the value of an input. Boolean inputs use Bool, scalar
// inputs use X, vector inputs use X, Y and Z.
type InputValue struct {
	X, Y, Z float32
	Bool    uint32
}

// Input is the state of one input component. The layout is shared with
// clients and must stay 32 bytes.
type Input struct {
	Timestamp int64
	Name      InputName
	Active    uint32
	Value     InputValue
}

// Output is one output component.
type Output struct {
	Name OutputName
}

// HMDView describes the display and field of view of one eye.
type HMDView struct {
	DisplayWidth  uint32
	DisplayHeight uint32
	Fov           Fov
}

// HMDParts is the head-mounted display part of a device.
type HMDParts struct {
	Views [2]HMDView
}

// Device is a single tracked device.
type Device interface {
	// Name reports the kind of device.
	Name() DeviceName

	// Str is a human-readable device string.
	Str() string

	// TrackingOrigin returns the origin the device's poses are relative to.
	TrackingOrigin() *TrackingOrigin

	// Inputs returns the device's input state. The returned slice is owned
	// by the device and refreshed by UpdateInputs.
	Inputs() []Input

	// Outputs returns the device's output components.
	Outputs() []Output

	// HMD returns the head-mounted display parts, or nil.
	HMD() *HMDParts

	// UpdateInputs refreshes the input state.
	UpdateInputs()

	// Destroy releases the device.
	Destroy()
}

// Instance probes and owns devices and creates the compositor.
type Instance interface {
	// Select returns up to max devices. The first device is the primary
	// (head-mounted) device.
	Select(max int) ([]Device, error)

	// CreateCompositor creates the compositor for the primary device.
	CreateCompositor(primary Device) (Compositor, error)

	// Destroy releases the instance. Devices are destroyed separately.
	Destroy()
}
