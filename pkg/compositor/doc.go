// Package compositor is a software implementation of xrt.Compositor built
// on github.com/gogpu/gg.
//
// Swapchains are rings of RGBA8 gg.ImageBuf values. The renderer composes
// the submitted layers into a single side-by-side framebuffer (left eye in
// the left half, right eye in the right half) and paces Draw to the
// configured refresh rate, so the server's main loop runs at display rate
// without a hardware compositor.
//
//	┌──────────────── framebuffer ────────────────┐
//	│  left eye             │  right eye          │
//	│  projection(left)     │  projection(right)  │
//	│  quads                │  quads              │
//	└─────────────────────────────────────────────┘
//
// Destroyed swapchains stay readable until GarbageCollect, which the render
// loop calls after each Draw.
package compositor
