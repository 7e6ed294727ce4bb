// Package server implements the XR IPC server process.
//
// One process owns the devices and the compositor. Client applications
// connect over a unix socket, receive the shared memory segment that
// describes the devices, create swapchains and submit one layer list per
// frame. Only one client is served at a time.
//
// # Main Loop
//
// Server.Run drives a single goroutine that alternates between the event
// multiplexer and the render scheduler:
//
//	for running {
//	    checkPoll()      // epoll_wait(timeout 0): admin fd, listen fd
//	    scheduler.step() // take the client's frame, Draw, post, GC
//	}
//
// The loop never sleeps; the renderer's Draw paces it to the display rate.
//
// # Frame Handoff
//
// The client worker goroutine and the scheduler exchange frames through a
// mailbox in the client slot:
//
//	worker                            scheduler
//	──────                            ─────────
//	write layers (state Empty)
//	Empty → Ready          ───────▶   Ready → Claimed (CAS)
//	wait for result                   validate, submit to renderer
//	                       ◀───────   Claimed → Empty, send Consumed/Rejected
//
// A frame that references an unknown swapchain or image is rejected as a
// whole and the renderer keeps drawing the previous frame. A frame that is
// not claimed within FrameTimeout is withdrawn by the worker.
//
// # Lifecycle
//
//	srv := server.New(cfg, instance)
//	if err := srv.Init(); err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//	defer srv.Close()
//	err := srv.Run(ctx)
//
// Close tears everything down in reverse order of creation: admin
// endpoint, client worker, compositor, devices, instance, shared memory,
// epoll, socket.
package server
