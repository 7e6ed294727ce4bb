package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/xripc/pkg/client"
	"github.com/vango-dev/xripc/pkg/server"
)

func probeCmd() *cobra.Command {
	var (
		socket  string
		frames  int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to a running server and print what it publishes",
		Long: `Connect to a running server as a client, print the devices,
tracking origins and display geometry from shared memory, measure a
ping round trip and optionally time a number of frames.

Examples:
  xripc probe
  xripc probe --frames=90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if socket == "" {
				socket = server.DefaultSocketPath()
			}
			return runProbe(cmd.Context(), socket, frames, timeout)
		},
	}

	cmd.Flags().StringVarP(&socket, "socket", "S", "", "Socket path (default $XDG_RUNTIME_DIR/xripc_comp_ipc)")
	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "Number of frames to wait for and time")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Connect and frame timeout")

	return cmd
}

func runProbe(ctx context.Context, socket string, frames int, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, socket, "xripc-probe")
	if err != nil {
		return err
	}
	defer c.Close()

	success("Connected to %s as %s", socket, c.ID())

	origins := c.TrackingOrigins()
	fmt.Printf("\nTracking origins (%d):\n", len(origins))
	for i, o := range origins {
		info("[%d] %s (type %d)", i, o.Name, o.Type)
	}

	devices := c.Devices()
	fmt.Printf("\nDevices (%d):\n", len(devices))
	for _, d := range devices {
		info("[%d] %-16s %-24q origin %d, %d inputs, %d outputs",
			d.Index, d.Name, d.Str, d.TrackingOrigin, len(d.Inputs), len(d.Outputs))
	}

	hmd := c.HMD()
	fmt.Println("\nDisplay:")
	for i, v := range hmd.Views {
		info("eye %d: %dx%d", i, v.DisplayWidth, v.DisplayHeight)
	}

	rtt, err := c.Ping()
	if err != nil {
		return err
	}
	fmt.Println()
	success("Ping %s", rtt.Round(time.Microsecond))

	if frames > 0 {
		start := time.Now()
		for i := 0; i < frames; i++ {
			frameCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := c.WaitFrame(frameCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		elapsed := time.Since(start)
		success("%d frames in %s (%.1f Hz)", frames, elapsed.Round(time.Millisecond), float64(frames)/elapsed.Seconds())
	}
	return nil
}
