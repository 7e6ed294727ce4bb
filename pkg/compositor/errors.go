package compositor

import "errors"

// Errors returned by the compositor.
var (
	ErrInvalidSize      = errors.New("compositor: invalid swapchain size")
	ErrInvalidFormat    = errors.New("compositor: unsupported swapchain format")
	ErrImageCount       = errors.New("compositor: invalid swapchain image count")
	ErrImageIndex       = errors.New("compositor: image index out of range")
	ErrPixelDataSize    = errors.New("compositor: pixel data size mismatch")
	ErrSwapchainRetired = errors.New("compositor: swapchain destroyed")
	ErrClosed           = errors.New("compositor: closed")
)
