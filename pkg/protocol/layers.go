package protocol

import (
	"errors"
	"fmt"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// MaxLayers is the maximum number of layers in one frame.
const MaxLayers = 16

// ErrUnknownLayerType is returned for a layer with an unknown type tag.
var ErrUnknownLayerType = errors.New("protocol: unknown layer type")

// LayerSync is the payload of CmdLayerSync: the complete layer list of
// one frame.
//
// Layer encoding:
//
//	[Type: 1][FlipY: 1][SwapchainID0: 4][SwapchainID1: 4][variant...]
//	StereoProjection: [Left image, array: 4+4][Right image, array: 4+4]
//	Quad:             [Image, array: 4+4][Pose: 7*4][Size: 2*4]
type LayerSync struct {
	Layers []xrt.LayerRenderState
}

// EncodeLayerSync encodes a LayerSync.
func EncodeLayerSync(ls *LayerSync) ([]byte, error) {
	if len(ls.Layers) > MaxLayers {
		return nil, ErrCollectionTooLarge
	}
	e := NewEncoderWithCap(1 + len(ls.Layers)*64)
	e.WriteUvarint(uint64(len(ls.Layers)))
	for i, l := range ls.Layers {
		if err := encodeLayer(e, &l); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return e.Bytes(), nil
}

func encodeLayer(e *Encoder, l *xrt.LayerRenderState) error {
	if l.Data == nil {
		return ErrUnknownLayerType
	}
	e.WriteByte(byte(l.Data.LayerType()))
	e.WriteBool(l.FlipY)
	e.WriteUint32(l.SwapchainIDs[0])
	e.WriteUint32(l.SwapchainIDs[1])

	switch data := l.Data.(type) {
	case xrt.StereoProjectionData:
		writeSubImage(e, data.Left)
		writeSubImage(e, data.Right)
	case xrt.QuadData:
		writeSubImage(e, data.Sub)
		writePose(e, data.Pose)
		e.WriteFloat32(data.Size.X)
		e.WriteFloat32(data.Size.Y)
	default:
		return ErrUnknownLayerType
	}
	return nil
}

// DecodeLayerSync decodes a LayerSync.
func DecodeLayerSync(data []byte) (*LayerSync, error) {
	d := NewDecoder(data)
	count, err := d.ReadCount(MaxLayers)
	if err != nil {
		return nil, err
	}
	ls := &LayerSync{Layers: make([]xrt.LayerRenderState, count)}
	for i := range ls.Layers {
		if err := decodeLayer(d, &ls.Layers[i]); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return ls, d.Finish()
}

func decodeLayer(d *Decoder, l *xrt.LayerRenderState) error {
	tag, err := d.ReadByte()
	if err != nil {
		return err
	}
	if l.FlipY, err = d.ReadBool(); err != nil {
		return err
	}
	if l.SwapchainIDs[0], err = d.ReadUint32(); err != nil {
		return err
	}
	if l.SwapchainIDs[1], err = d.ReadUint32(); err != nil {
		return err
	}

	switch xrt.LayerType(tag) {
	case xrt.LayerStereoProjection:
		var p xrt.StereoProjectionData
		if p.Left, err = readSubImage(d); err != nil {
			return err
		}
		if p.Right, err = readSubImage(d); err != nil {
			return err
		}
		l.Data = p
	case xrt.LayerQuad:
		var q xrt.QuadData
		if q.Sub, err = readSubImage(d); err != nil {
			return err
		}
		if q.Pose, err = readPose(d); err != nil {
			return err
		}
		if q.Size.X, err = d.ReadFloat32(); err != nil {
			return err
		}
		if q.Size.Y, err = d.ReadFloat32(); err != nil {
			return err
		}
		l.Data = q
	default:
		return fmt.Errorf("%w: %d", ErrUnknownLayerType, tag)
	}
	return nil
}

func writeSubImage(e *Encoder, s xrt.SubImage) {
	e.WriteUint32(s.ImageIndex)
	e.WriteUint32(s.ArrayIndex)
}

func readSubImage(d *Decoder) (xrt.SubImage, error) {
	var s xrt.SubImage
	var err error
	if s.ImageIndex, err = d.ReadUint32(); err != nil {
		return s, err
	}
	s.ArrayIndex, err = d.ReadUint32()
	return s, err
}

func writePose(e *Encoder, p xrt.Pose) {
	for _, f := range [...]float32{
		p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W,
		p.Position.X, p.Position.Y, p.Position.Z,
	} {
		e.WriteFloat32(f)
	}
}

func readPose(d *Decoder) (xrt.Pose, error) {
	var p xrt.Pose
	for _, dst := range []*float32{
		&p.Orientation.X, &p.Orientation.Y, &p.Orientation.Z, &p.Orientation.W,
		&p.Position.X, &p.Position.Y, &p.Position.Z,
	} {
		v, err := d.ReadFloat32()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	return p, nil
}
