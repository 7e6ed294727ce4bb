package protocol

import "github.com/vango-dev/xripc/pkg/xrt"

// SwapchainCreated answers CmdSwapchainCreate.
type SwapchainCreated struct {
	ID         uint32
	ImageCount uint32
}

// SwapchainDestroy is the payload of CmdSwapchainDestroy.
type SwapchainDestroy struct {
	ID uint32
}

// SwapchainUpload is the payload of CmdSwapchainUpload: RGBA8 pixels for
// one image, rows top to bottom.
type SwapchainUpload struct {
	ID         uint32
	ImageIndex uint32
	Pixels     []byte
}

// EncodeSwapchainCreateInfo encodes a create request.
func EncodeSwapchainCreateInfo(info *xrt.SwapchainCreateInfo) []byte {
	e := NewEncoderWithCap(20)
	e.WriteUint32(info.Width)
	e.WriteUint32(info.Height)
	e.WriteUint32(info.ImageCount)
	e.WriteUint32(info.ArraySize)
	e.WriteUint32(info.Format)
	return e.Bytes()
}

// DecodeSwapchainCreateInfo decodes a create request.
func DecodeSwapchainCreateInfo(data []byte) (*xrt.SwapchainCreateInfo, error) {
	d := NewDecoder(data)
	info := &xrt.SwapchainCreateInfo{}
	for _, dst := range []*uint32{&info.Width, &info.Height, &info.ImageCount, &info.ArraySize, &info.Format} {
		v, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return info, d.Finish()
}

// EncodeSwapchainCreated encodes a create reply.
func EncodeSwapchainCreated(sc *SwapchainCreated) []byte {
	e := NewEncoderWithCap(8)
	e.WriteUint32(sc.ID)
	e.WriteUint32(sc.ImageCount)
	return e.Bytes()
}

// DecodeSwapchainCreated decodes a create reply.
func DecodeSwapchainCreated(data []byte) (*SwapchainCreated, error) {
	d := NewDecoder(data)
	id, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &SwapchainCreated{ID: id, ImageCount: count}, d.Finish()
}

// EncodeSwapchainDestroy encodes a destroy request.
func EncodeSwapchainDestroy(sd *SwapchainDestroy) []byte {
	e := NewEncoderWithCap(4)
	e.WriteUint32(sd.ID)
	return e.Bytes()
}

// DecodeSwapchainDestroy decodes a destroy request.
func DecodeSwapchainDestroy(data []byte) (*SwapchainDestroy, error) {
	d := NewDecoder(data)
	id, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &SwapchainDestroy{ID: id}, d.Finish()
}

// EncodeSwapchainUpload encodes an upload request.
func EncodeSwapchainUpload(su *SwapchainUpload) []byte {
	e := NewEncoderWithCap(16 + len(su.Pixels))
	e.WriteUint32(su.ID)
	e.WriteUint32(su.ImageIndex)
	e.WriteLenBytes(su.Pixels)
	return e.Bytes()
}

// DecodeSwapchainUpload decodes an upload request.
func DecodeSwapchainUpload(data []byte) (*SwapchainUpload, error) {
	d := NewDecoder(data)
	su := &SwapchainUpload{}
	var err error
	if su.ID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if su.ImageIndex, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if su.Pixels, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	return su, d.Finish()
}
