// Package client connects applications to an xripc server.
//
// Dial performs the handshake and maps the shared memory segment the
// server sends with its reply. Device, tracking origin and display data
// are then read directly from shared memory; swapchains and frames go
// over the socket:
//
//	c, err := client.Dial(ctx, path, "my-app")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	sc, err := c.CreateSwapchain(xrt.SwapchainCreateInfo{
//	    Width: 640, Height: 720, ImageCount: 3, Format: xrt.FormatRGBA8,
//	})
//	...
//	for {
//	    c.Upload(sc.ID, i, pixels)
//	    c.SubmitLayers(layer)
//	    c.WaitFrame(ctx)
//	}
//
// A Client is safe for concurrent use; requests are serialized on the
// connection.
package client
