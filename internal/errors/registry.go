package errors

// Exit statuses for startup failures. Each failure class has its own
// status so supervisors can tell them apart.
const (
	ExitGeneric   = -1
	ExitShm       = -2
	ExitSocket    = -3
	ExitPoll      = -4
	ExitDevice    = -5
	ExitConfig    = -6
	ExitRunning   = -7
	ExitActivated = -8
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	Exit       int
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Shared memory (E100-E109)
	// ============================================

	"E100": {
		Category:   CategoryShm,
		Message:    "Failed to create shared memory segment",
		Detail:     "The segment could not be created, sized or mapped.",
		Suggestion: "Check that /dev/shm is mounted and writable.",
		Exit:       ExitShm,
	},
	"E101": {
		Category:   CategoryShm,
		Message:    "Shared memory table capacity exceeded",
		Detail:     "The selected devices need more tracking origins, devices, inputs or outputs than the segment layout holds.",
		Suggestion: "Disable some devices in the configuration.",
		Exit:       ExitShm,
	},

	// ============================================
	// Socket (E110-E119)
	// ============================================

	"E110": {
		Category:   CategorySocket,
		Message:    "Could not bind socket",
		Detail:     "Another process already listens on the socket path.",
		Suggestion: "Is the service running already? Otherwise remove the stale socket file.",
		Exit:       ExitRunning,
	},
	"E111": {
		Category:   CategorySocket,
		Message:    "Too many activation sockets",
		Detail:     "The service manager passed more than one listening socket.",
		Suggestion: "Configure exactly one ListenStream= in the socket unit.",
		Exit:       ExitActivated,
	},
	"E112": {
		Category: CategorySocket,
		Message:  "Failed to create listening socket",
		Detail:   "Creating, binding or listening on the unix socket failed.",
		Exit:     ExitSocket,
	},

	// ============================================
	// Event loop (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryStartup,
		Message:  "Failed to create epoll instance",
		Detail:   "The event multiplexer could not be created or could not watch its descriptors.",
		Exit:     ExitPoll,
	},

	// ============================================
	// Devices (E130-E139)
	// ============================================

	"E130": {
		Category:   CategoryDevice,
		Message:    "No HMD found",
		Detail:     "Device selection returned no devices.",
		Suggestion: "Connect a headset or enable the simulated devices.",
		Exit:       ExitDevice,
	},
	"E131": {
		Category: CategoryDevice,
		Message:  "Failed to create compositor",
		Detail:   "The compositor could not be created for the primary device.",
		Exit:     ExitDevice,
	},
	"E132": {
		Category: CategoryDevice,
		Message:  "Device selection failed",
		Detail:   "The device instance failed to probe or select devices.",
		Exit:     ExitDevice,
	},

	// ============================================
	// Configuration (E140-E149)
	// ============================================

	"E140": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "The configuration file could not be parsed.",
		Suggestion: "Check the file for syntax errors.",
		Exit:       ExitConfig,
	},
	"E141": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Detail:     "The configuration file passed on the command line does not exist.",
		Suggestion: "Pass an existing file with --config or omit the flag to use defaults.",
		Exit:       ExitConfig,
	},
	"E142": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
		Exit:     ExitConfig,
	},

	// ============================================
	// Protocol (E150-E159)
	// ============================================

	"E150": {
		Category:   CategoryProtocol,
		Message:    "Server busy",
		Detail:     "The server already serves a client; only one client is supported at a time.",
		Suggestion: "Close the other client first.",
	},
	"E151": {
		Category:   CategoryProtocol,
		Message:    "Protocol version mismatch",
		Detail:     "The client and server speak different protocol or shared memory layout versions.",
		Suggestion: "Rebuild the client against the same release as the server.",
	},
	"E152": {
		Category:   CategoryProtocol,
		Message:    "Connection failed",
		Detail:     "Could not connect to the server socket.",
		Suggestion: "Is the server running? Check the socket path.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
