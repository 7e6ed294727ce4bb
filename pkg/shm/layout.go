package shm

import (
	"unsafe"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// Table capacities.
const (
	MaxTrackingOrigins = 8
	MaxDevices         = 8
	MaxInputs          = 1024
	MaxOutputs         = 128

	// NameLen is the size of the fixed name fields, including the
	// terminating zero byte.
	NameLen = 256
)

// LayoutVersion changes whenever Layout changes.
const LayoutVersion = 1

// Magic starts every segment.
var Magic = [8]byte{'X', 'R', 'I', 'P', 'C', 'S', 'H', 'M'}

// LayoutSize is the segment size in bytes.
const LayoutSize = int(unsafe.Sizeof(Layout{}))

// TrackingOrigin is a published tracking origin.
type TrackingOrigin struct {
	Name   [NameLen]byte
	Type   xrt.TrackingType
	Offset xrt.Pose
}

// Device is a published device.
type Device struct {
	Name                xrt.DeviceName
	Str                 [NameLen]byte
	TrackingOriginIndex uint32
	NumInputs           uint32
	FirstInputIndex     uint32
	NumOutputs          uint32
	FirstOutputIndex    uint32
}

// HMD is the published head-mounted display geometry.
type HMD struct {
	Views [2]xrt.HMDView
}

// FrameSync is the cross-process frame counter. Seq is the futex word.
type FrameSync struct {
	Seq     uint32
	Waiters uint32
}

// Layout is the complete segment. Every field has a fixed size so the
// struct maps bit-exactly in every process built from the same version.
type Layout struct {
	Magic              [8]byte
	Version            uint32
	Size               uint32
	NumTrackingOrigins uint32
	NumDevices         uint32

	TrackingOrigins [MaxTrackingOrigins]TrackingOrigin
	Devices         [MaxDevices]Device
	HMD             HMD
	WaitFrame       FrameSync

	Inputs  [MaxInputs]xrt.Input
	Outputs [MaxOutputs]xrt.Output
}

// Check validates the header of a mapped segment.
func (l *Layout) Check() error {
	if l.Magic != Magic {
		return ErrBadMagic
	}
	if l.Version != LayoutVersion || l.Size != uint32(LayoutSize) {
		return ErrVersionMismatch
	}
	return nil
}

// DeviceInputs returns the input slice of device i.
func (l *Layout) DeviceInputs(i int) []xrt.Input {
	d := &l.Devices[i]
	return l.Inputs[d.FirstInputIndex : d.FirstInputIndex+d.NumInputs]
}

// DeviceOutputs returns the output slice of device i.
func (l *Layout) DeviceOutputs(i int) []xrt.Output {
	d := &l.Devices[i]
	return l.Outputs[d.FirstOutputIndex : d.FirstOutputIndex+d.NumOutputs]
}

// String returns the zero-terminated string stored in a name field.
func String(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// setString stores s zero-terminated in dst, truncating if needed.
func setString(dst []byte, s string) {
	clear(dst)
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

func layoutAt(mem []byte) *Layout {
	return (*Layout)(unsafe.Pointer(&mem[0]))
}
