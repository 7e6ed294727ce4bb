// Package config provides configuration parsing for the xripc server.
//
// The configuration is stored in xripc.json (or xripc.toml) and may be
// overridden by environment variables. Every field is optional.
//
// # Configuration File Structure
//
//	{
//	  "socket": {"path": "/run/user/1000/xripc_comp_ipc", "watchStdin": true},
//	  "shm": {"name": "xripc_shm"},
//	  "exitOnDisconnect": false,
//	  "frameTimeout": "1s",
//	  "render": {
//	    "width": 1280,
//	    "height": 720,
//	    "refreshRate": 90,
//	    "idleColor": "#1a1a1a",
//	    "activeColor": "#000000"
//	  },
//	  "devices": {"controllers": 2, "tracker": false},
//	  "admin": {"address": "127.0.0.1:9464", "liveInterval": "500ms"},
//	  "capture": {"dir": "/var/tmp/xripc", "s3": {"bucket": "", "region": ""}},
//	  "log": {"level": "info", "format": "text"}
//	}
//
// # Environment
//
//	IPC_EXIT_ON_DISCONNECT  exit when the client disconnects (bool)
//	XRIPC_SOCKET            socket path
//	XRIPC_LOG_LEVEL         log level
package config
