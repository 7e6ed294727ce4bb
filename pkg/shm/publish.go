package shm

import (
	"fmt"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// CollectTrackingOrigins returns the distinct tracking origins of devices
// in first-seen order. Origins are compared by identity.
func CollectTrackingOrigins(devices []xrt.Device) []*xrt.TrackingOrigin {
	var origins []*xrt.TrackingOrigin
	seen := make(map[*xrt.TrackingOrigin]bool)
	for _, d := range devices {
		o := d.TrackingOrigin()
		if o == nil || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}

// Publish writes the tracking origins, devices, inputs, outputs and HMD
// geometry of devices into l. Each device's inputs are refreshed once
// before they are copied. Nothing is written when a table would overflow.
func Publish(l *Layout, devices []xrt.Device) error {
	origins := CollectTrackingOrigins(devices)
	if len(origins) > MaxTrackingOrigins {
		return fmt.Errorf("%w: %d origins, max %d", ErrTrackingOriginCapacity, len(origins), MaxTrackingOrigins)
	}
	if len(devices) > MaxDevices {
		return fmt.Errorf("%w: %d devices, max %d", ErrDeviceCapacity, len(devices), MaxDevices)
	}

	for _, d := range devices {
		if d.TrackingOrigin() == nil {
			return fmt.Errorf("%w: %s", ErrNoTrackingOrigin, d.Str())
		}
		d.UpdateInputs()
	}

	var numInputs, numOutputs int
	for _, d := range devices {
		numInputs += len(d.Inputs())
		numOutputs += len(d.Outputs())
	}
	if numInputs > MaxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrInputCapacity, numInputs, MaxInputs)
	}
	if numOutputs > MaxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrOutputCapacity, numOutputs, MaxOutputs)
	}

	originIndex := make(map[*xrt.TrackingOrigin]uint32, len(origins))
	for i, o := range origins {
		originIndex[o] = uint32(i)
		t := &l.TrackingOrigins[i]
		setString(t.Name[:], o.Name)
		t.Type = o.Type
		t.Offset = o.Offset
	}
	l.NumTrackingOrigins = uint32(len(origins))

	var input, output uint32
	hmdSet := false
	for i, d := range devices {
		sd := &l.Devices[i]
		sd.Name = d.Name()
		setString(sd.Str[:], d.Str())
		sd.TrackingOriginIndex = originIndex[d.TrackingOrigin()]

		inputs := d.Inputs()
		sd.FirstInputIndex = input
		sd.NumInputs = uint32(len(inputs))
		input += uint32(copy(l.Inputs[input:], inputs))

		outputs := d.Outputs()
		sd.FirstOutputIndex = output
		sd.NumOutputs = uint32(len(outputs))
		output += uint32(copy(l.Outputs[output:], outputs))

		if hmd := d.HMD(); hmd != nil && !hmdSet {
			l.HMD.Views = hmd.Views
			hmdSet = true
		}
	}
	l.NumDevices = uint32(len(devices))

	l.WaitFrame = FrameSync{}
	l.Magic = Magic
	l.Version = LayoutVersion
	l.Size = uint32(LayoutSize)
	return nil
}

// UpdateDeviceInputs refreshes device d, published at index i, and copies
// its inputs into its slice of the input table.
func UpdateDeviceInputs(l *Layout, i int, d xrt.Device) error {
	if i < 0 || i >= int(l.NumDevices) {
		return fmt.Errorf("%w: %d", ErrDeviceIndex, i)
	}
	d.UpdateInputs()
	copy(l.DeviceInputs(i), d.Inputs())
	return nil
}
