package protocol

// ErrorCode identifies the type of error.
type ErrorCode uint16

const (
	ErrUnknown           ErrorCode = 0x0000 // Unknown error
	ErrInvalidFrame      ErrorCode = 0x0001 // Malformed frame or payload
	ErrInvalidCommand    ErrorCode = 0x0002 // Unknown command
	ErrNotActive         ErrorCode = 0x0003 // Request before handshake
	ErrInvalidSwapchain  ErrorCode = 0x0004 // Unknown swapchain id
	ErrSwapchainCapacity ErrorCode = 0x0005 // No free swapchain slot
	ErrInvalidImage      ErrorCode = 0x0006 // Image index or pixel data invalid
	ErrTooManyLayers     ErrorCode = 0x0007 // Layer count above MaxLayers
	ErrFrameTimeout      ErrorCode = 0x0008 // Frame not picked up in time
	ErrInvalidDevice     ErrorCode = 0x0009 // Unknown device index
	ErrServerError       ErrorCode = 0x0100 // Internal server error
	ErrShuttingDown      ErrorCode = 0x0101 // Server is stopping
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidCommand:
		return "InvalidCommand"
	case ErrNotActive:
		return "NotActive"
	case ErrInvalidSwapchain:
		return "InvalidSwapchain"
	case ErrSwapchainCapacity:
		return "SwapchainCapacity"
	case ErrInvalidImage:
		return "InvalidImage"
	case ErrTooManyLayers:
		return "TooManyLayers"
	case ErrFrameTimeout:
		return "FrameTimeout"
	case ErrInvalidDevice:
		return "InvalidDevice"
	case ErrServerError:
		return "ServerError"
	case ErrShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// ErrorMessage is the payload of an error reply.
type ErrorMessage struct {
	Code    ErrorCode // Error code
	Message string    // Human-readable error message
	Fatal   bool      // If true, the server closes the connection
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint32(uint32(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{
		Code:    ErrorCode(code),
		Message: message,
		Fatal:   fatal,
	}, d.Finish()
}

// NewError creates a new non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a new fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

// IsFatal returns true if this error closes the connection.
func (em *ErrorMessage) IsFatal() bool {
	return em.Fatal
}
