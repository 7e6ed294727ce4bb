package compositor

import (
	"fmt"
	"sync"

	"github.com/gogpu/gg"

	"github.com/vango-dev/xripc/pkg/xrt"
)

const bytesPerPixel = 4

// image is one swapchain image: one gg.ImageBuf per array layer.
type image struct {
	sc     *swapchain
	layers []*gg.ImageBuf

	// flipped caches vertically mirrored copies per array layer; an entry
	// is valid while its generation matches gen.
	gen        uint64
	flipped    []*gg.ImageBuf
	flippedGen []uint64
}

func (img *image) Width() int  { return img.sc.width }
func (img *image) Height() int { return img.sc.height }

// source returns the buffer to sample for array layer array, mirrored
// vertically when flipY is set. Callers hold sc.mu.
func (img *image) source(array uint32, flipY bool) *gg.ImageBuf {
	if img.layers == nil || int(array) >= len(img.layers) {
		return nil
	}
	buf := img.layers[array]
	if !flipY {
		return buf
	}
	if f := img.flipped[array]; f != nil && img.flippedGen[array] == img.gen {
		return f
	}
	f := buf.Clone()
	h := f.Height()
	for y := 0; y < h; y++ {
		copy(f.RowBytes(y), buf.RowBytes(h-1-y))
	}
	img.flipped[array] = f
	img.flippedGen[array] = img.gen
	return f
}

// swapchain implements xrt.Swapchain.
type swapchain struct {
	c         *Compositor
	id        uint64
	width     int
	height    int
	arraySize int

	mu     sync.Mutex
	images []*image
}

var _ xrt.Swapchain = (*swapchain)(nil)

func newSwapchain(c *Compositor, width, height, count, arraySize int) (*swapchain, error) {
	sc := &swapchain{c: c, width: width, height: height, arraySize: arraySize}
	sc.images = make([]*image, count)
	for i := range sc.images {
		img := &image{
			sc:         sc,
			layers:     make([]*gg.ImageBuf, arraySize),
			flipped:    make([]*gg.ImageBuf, arraySize),
			flippedGen: make([]uint64, arraySize),
		}
		for a := range img.layers {
			buf, err := gg.NewImageBuf(width, height, gg.FormatRGBA8)
			if err != nil {
				return nil, fmt.Errorf("compositor: allocate image: %w", err)
			}
			img.layers[a] = buf
		}
		sc.images[i] = img
	}
	return sc, nil
}

// ImageCount returns the number of images in the ring.
func (sc *swapchain) ImageCount() int {
	return len(sc.images)
}

// ArraySize returns the number of array layers per image.
func (sc *swapchain) ArraySize() int {
	return sc.arraySize
}

// Image returns image i.
func (sc *swapchain) Image(i int) xrt.Image {
	if i < 0 || i >= len(sc.images) {
		return nil
	}
	return sc.images[i]
}

// Upload replaces image i's pixels. pixels holds every array layer in
// order, each width*height*4 bytes of RGBA8, rows top to bottom.
func (sc *swapchain) Upload(i int, pixels []byte) error {
	if i < 0 || i >= len(sc.images) {
		return fmt.Errorf("%w: %d of %d", ErrImageIndex, i, len(sc.images))
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	img := sc.images[i]
	if img.layers == nil {
		return ErrSwapchainRetired
	}
	rowBytes := sc.width * bytesPerPixel
	layerBytes := rowBytes * sc.height
	if len(pixels) != layerBytes*len(img.layers) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelDataSize, len(pixels), layerBytes*len(img.layers))
	}

	for a, buf := range img.layers {
		src := pixels[a*layerBytes:]
		for y := 0; y < sc.height; y++ {
			copy(buf.RowBytes(y), src[y*rowBytes:(y+1)*rowBytes])
		}
		buf.InvalidatePremulCache()
	}
	img.gen++
	return nil
}

// Destroy hands the swapchain to the compositor's deferred-destroy queue.
func (sc *swapchain) Destroy() {
	sc.c.retire(sc)
}

// release drops the pixel buffers. Images drawn after release are skipped.
func (sc *swapchain) release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, img := range sc.images {
		img.layers = nil
		img.flipped = nil
		img.flippedGen = nil
	}
}
