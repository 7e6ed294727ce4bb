package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/gg"
	"github.com/spf13/cobra"

	"github.com/vango-dev/xripc/internal/errors"
	"github.com/vango-dev/xripc/pkg/admin"
	"github.com/vango-dev/xripc/pkg/server"
)

type serveOptions struct {
	configPath       string
	socket           string
	adminAddr        string
	exitOnDisconnect bool
	noStdin          bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the compositor server",
		Long: `Run the compositor server until stopped.

The server stops on SIGINT or SIGTERM, when stdin becomes readable
(unless socket-activated or --no-stdin is given) and, with
--exit-on-disconnect, when its client disconnects.

Configuration is read from xripc.json or xripc.toml in the working
directory unless --config is given. IPC_EXIT_ON_DISCONNECT,
XRIPC_SOCKET and XRIPC_LOG_LEVEL override the file.

Examples:
  xripc serve
  xripc serve --socket=/tmp/xr.sock --no-stdin
  xripc serve --admin=127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (default xripc.json or xripc.toml)")
	cmd.Flags().StringVarP(&opts.socket, "socket", "S", "", "Socket path (default $XDG_RUNTIME_DIR/xripc_comp_ipc)")
	cmd.Flags().StringVar(&opts.adminAddr, "admin", "", "Admin endpoint address (default from config, empty disables)")
	cmd.Flags().BoolVar(&opts.exitOnDisconnect, "exit-on-disconnect", false, "Stop when the client disconnects")
	cmd.Flags().BoolVar(&opts.noStdin, "no-stdin", false, "Do not stop when stdin becomes readable")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig(opts.configPath, os.Getenv)
	if err != nil {
		return err
	}
	if opts.socket != "" {
		cfg.Socket.Path = opts.socket
	}
	if opts.adminAddr != "" {
		cfg.Admin.Address = opts.adminAddr
	}
	if cmd.Flags().Changed("exit-on-disconnect") {
		cfg.ExitOnDisconnect = opts.exitOnDisconnect
	}
	if opts.noStdin {
		watch := false
		cfg.Socket.WatchStdin = &watch
	}

	logger := newLogger(os.Stderr, cfg.Log)
	logger.Info("starting xripc", "version", version)
	gg.SetLogger(logger)

	inst, err := newInstance(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(serverConfig(cfg, logger), inst)
	if err := srv.Init(); err != nil {
		return err
	}
	defer srv.Close()

	if cfg.Admin.Address != "" {
		store, err := captureStore(cfg.Capture)
		if err != nil {
			return errors.New("E142").Wrap(err)
		}
		interval, _ := cfg.LiveIntervalDuration()
		a := admin.New(srv, admin.Config{
			Address:      cfg.Admin.Address,
			LiveInterval: interval,
			Store:        store,
			Logger:       logger,
		})
		if err := a.Start(); err != nil {
			return errors.Newf(errors.CategoryStartup, "admin endpoint: %v", err)
		}
		srv.AttachAdmin(a)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
