package protocol

// DeviceUpdateInput asks the server to refresh one device's inputs in
// shared memory.
type DeviceUpdateInput struct {
	DeviceIndex uint32
}

// EncodeDeviceUpdateInput encodes the request.
func EncodeDeviceUpdateInput(u *DeviceUpdateInput) []byte {
	e := NewEncoderWithCap(4)
	e.WriteUint32(u.DeviceIndex)
	return e.Bytes()
}

// DecodeDeviceUpdateInput decodes the request.
func DecodeDeviceUpdateInput(data []byte) (*DeviceUpdateInput, error) {
	d := NewDecoder(data)
	idx, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &DeviceUpdateInput{DeviceIndex: idx}, d.Finish()
}
