package xrt

import "fmt"

// LayerType tags the variant of a layer on the wire.
type LayerType uint8

const (
	LayerStereoProjection LayerType = iota + 1
	LayerQuad
)

// String returns the layer type name.
func (t LayerType) String() string {
	switch t {
	case LayerStereoProjection:
		return "StereoProjection"
	case LayerQuad:
		return "Quad"
	default:
		return fmt.Sprintf("LayerType(%d)", uint8(t))
	}
}

// SubImage selects an image of a swapchain and an array layer within it.
type SubImage struct {
	ImageIndex uint32
	ArrayIndex uint32
}

// LayerData is the variant part of a layer: StereoProjectionData or
// QuadData.
type LayerData interface {
	LayerType() LayerType
	isLayerData()
}

// StereoProjectionData covers the whole view with one image per eye.
// The left eye comes from SwapchainIDs[0], the right eye from
// SwapchainIDs[1].
type StereoProjectionData struct {
	Left  SubImage
	Right SubImage
}

// LayerType implements LayerData.
func (StereoProjectionData) LayerType() LayerType { return LayerStereoProjection }
func (StereoProjectionData) isLayerData()         {}

// QuadData is a flat rectangle placed in space. The image comes from
// SwapchainIDs[0].
type QuadData struct {
	Sub  SubImage
	Pose Pose
	Size Vec2
}

// LayerType implements LayerData.
func (QuadData) LayerType() LayerType { return LayerQuad }
func (QuadData) isLayerData()         {}

// LayerRenderState is one layer of a submitted frame.
type LayerRenderState struct {
	SwapchainIDs [2]uint32
	FlipY        bool
	Data         LayerData
}

// SwapchainRefs returns the swapchain ids the layer reads from.
func (l LayerRenderState) SwapchainRefs() []uint32 {
	switch l.Data.(type) {
	case StereoProjectionData:
		return l.SwapchainIDs[:2]
	case QuadData:
		return l.SwapchainIDs[:1]
	default:
		return nil
	}
}
