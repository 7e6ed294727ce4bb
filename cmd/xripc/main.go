package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/xripc/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xripc",
		Short: "XR IPC compositor server",
		Long: `xripc runs the XR compositor service.

One server process owns the tracked devices and the compositor. A client
application connects over a unix socket, maps the shared memory segment
describing the devices and submits one layer list per frame.

  • Socket activation or a bound socket under $XDG_RUNTIME_DIR
  • Shared memory device, input and display tables
  • Software compositor paced to the display refresh rate
  • Optional HTTP admin endpoint with metrics and captures`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		probeCmd(),
		devicesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
