package xrt

// Image is one image of a swapchain as the renderer sees it.
type Image interface {
	Width() int
	Height() int
}

// FormatRGBA8 is the only swapchain format: 8-bit RGBA, rows top to
// bottom, no padding.
const FormatRGBA8 uint32 = 0x8058

// SwapchainCreateInfo describes a swapchain a client asks for.
type SwapchainCreateInfo struct {
	Width      uint32
	Height     uint32
	ImageCount uint32
	ArraySize  uint32
	Format     uint32
}

// Swapchain is a ring of images a client renders into.
type Swapchain interface {
	// ImageCount returns the number of images in the ring.
	ImageCount() int

	// ArraySize returns the number of array layers in each image.
	ArraySize() int

	// Image returns image i. i must be below ImageCount.
	Image(i int) Image

	// Upload replaces the pixels of image i with RGBA8 data.
	Upload(i int, pixels []byte) error

	// Destroy retires the swapchain. Its images stay valid until the
	// compositor's next GarbageCollect.
	Destroy()
}

// Renderer draws layers into the output. All methods are called from the
// render loop only.
type Renderer interface {
	// AllocateLayers allocates n layer slots.
	AllocateLayers(n int)

	// DestroyLayers releases all layer slots.
	DestroyLayers()

	// SetProjectionLayer sets slot to a stereo projection layer.
	SetProjectionLayer(left, right Image, leftArray, rightArray uint32, flipY bool, slot int)

	// SetQuadLayer sets slot to a quad layer placed at pose with size in meters.
	SetQuadLayer(img Image, pose Pose, size Vec2, flipY bool, slot int, array uint32)

	// Draw renders one frame. It may block to pace the frame rate.
	Draw()
}

// Compositor owns swapchains and the renderer.
type Compositor interface {
	// CreateSwapchain allocates a swapchain. Safe to call from a client
	// worker goroutine.
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)

	// Renderer returns the renderer driven by the render loop.
	Renderer() Renderer

	// GarbageCollect frees resources retired since the last call. Called
	// from the render loop only.
	GarbageCollect()

	// Destroy releases the compositor.
	Destroy()
}

// Snapshotter is implemented by compositors that can return the last
// drawn frame as PNG bytes.
type Snapshotter interface {
	SnapshotPNG() ([]byte, error)
}
