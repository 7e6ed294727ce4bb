package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/xripc/pkg/shm"
	"github.com/vango-dev/xripc/pkg/xrt"
)

func devicesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices the server would publish",
		Long: `Select devices as the server does at startup and list them with
their tracking origins, without opening a socket or shared memory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, os.Getenv)
			if err != nil {
				return err
			}
			logger := newLogger(io.Discard, cfg.Log)
			inst, err := newInstance(cfg, logger)
			if err != nil {
				return err
			}
			defer inst.Destroy()

			devices, err := inst.Select(shm.MaxDevices)
			if err != nil {
				return err
			}
			defer func() {
				for _, d := range devices {
					d.Destroy()
				}
			}()
			return printDevices(os.Stdout, devices)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default xripc.json or xripc.toml)")

	return cmd
}

// printDevices writes a device table. Origin numbers are the indices the
// devices get in shared memory.
func printDevices(w io.Writer, devices []xrt.Device) error {
	origins := shm.CollectTrackingOrigins(devices)
	index := make(map[*xrt.TrackingOrigin]int, len(origins))
	for i, o := range origins {
		index[o] = i
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tDESCRIPTION\tORIGIN\tINPUTS\tOUTPUTS")
	for i, d := range devices {
		origin := "-"
		if o := d.TrackingOrigin(); o != nil {
			origin = fmt.Sprintf("%d (%s)", index[o], o.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\n", i, d.Name(), d.Str(), origin, len(d.Inputs()), len(d.Outputs()))
	}
	return tw.Flush()
}
