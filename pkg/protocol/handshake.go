package protocol

// HandshakeStatus represents the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeInvalidFormat   HandshakeStatus = 0x02 // Malformed handshake message
	HandshakeInternalError   HandshakeStatus = 0x03 // Server error
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor. Peers
// must agree on Major.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Compatible reports whether a peer speaking v can talk to this build.
func (v ProtocolVersion) Compatible() bool {
	return v.Major == CurrentVersion.Major
}

// ClientHello is the first frame a client sends.
type ClientHello struct {
	Version ProtocolVersion
	AppName string
	PID     uint32
}

// ServerHello answers ClientHello. On HandshakeOK the frame carries the
// shared memory descriptor.
type ServerHello struct {
	Status        HandshakeStatus
	Version       ProtocolVersion
	LayoutVersion uint32 // shm.LayoutVersion of the segment
	SegmentSize   uint32 // bytes to map
	ClientID      string // id the server logs this connection under
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteString(ch.AppName)
	e.WriteUint32(ch.PID)
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	ch := &ClientHello{}
	var err error

	if ch.Version.Major, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if ch.Version.Minor, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if ch.AppName, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.PID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return ch, d.Finish()
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	e.WriteByte(byte(sh.Status))
	e.WriteByte(sh.Version.Major)
	e.WriteByte(sh.Version.Minor)
	e.WriteUint32(sh.LayoutVersion)
	e.WriteUint32(sh.SegmentSize)
	e.WriteString(sh.ClientID)
	return e.Bytes()
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	sh := &ServerHello{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HandshakeStatus(status)

	if sh.Version.Major, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if sh.Version.Minor, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if sh.LayoutVersion, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if sh.SegmentSize, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if sh.ClientID, err = d.ReadString(); err != nil {
		return nil, err
	}
	return sh, d.Finish()
}

// NewClientHello creates a ClientHello with the current version.
func NewClientHello(appName string, pid uint32) *ClientHello {
	return &ClientHello{
		Version: CurrentVersion,
		AppName: appName,
		PID:     pid,
	}
}

// NewServerHelloError creates a ServerHello with an error status.
func NewServerHelloError(status HandshakeStatus) *ServerHello {
	return &ServerHello{
		Status:  status,
		Version: CurrentVersion,
	}
}
