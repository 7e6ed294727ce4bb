package protocol

import (
	"testing"
)

func TestClientHelloEncodeDecode(t *testing.T) {
	hello := NewClientHello("hello_xr", 4242)
	decoded, err := DecodeClientHello(EncodeClientHello(hello))
	if err != nil {
		t.Fatalf("DecodeClientHello() error = %v", err)
	}
	if *decoded != *hello {
		t.Errorf("DecodeClientHello() = %+v, want %+v", decoded, hello)
	}
}

func TestServerHelloEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		hello *ServerHello
	}{
		{
			name: "ok",
			hello: &ServerHello{
				Status:        HandshakeOK,
				Version:       CurrentVersion,
				LayoutVersion: 1,
				SegmentSize:   37904,
				ClientID:      "0b8f8a3e-3c61-4f43-9b8c-8d1c2a4b5e6f",
			},
		},
		{
			name:  "version mismatch",
			hello: NewServerHelloError(HandshakeVersionMismatch),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeServerHello(EncodeServerHello(tc.hello))
			if err != nil {
				t.Fatalf("DecodeServerHello() error = %v", err)
			}
			if *decoded != *tc.hello {
				t.Errorf("DecodeServerHello() = %+v, want %+v", decoded, tc.hello)
			}
		})
	}
}

func TestClientHelloTruncated(t *testing.T) {
	encoded := EncodeClientHello(NewClientHello("app", 1))
	for i := 0; i < len(encoded); i++ {
		if _, err := DecodeClientHello(encoded[:i]); err == nil {
			t.Errorf("DecodeClientHello(%d bytes) succeeded, want error", i)
		}
	}
}

func TestClientHelloTrailingBytes(t *testing.T) {
	encoded := append(EncodeClientHello(NewClientHello("app", 1)), 0x00)
	if _, err := DecodeClientHello(encoded); err != ErrTrailingBytes {
		t.Errorf("DecodeClientHello() error = %v, want ErrTrailingBytes", err)
	}
}

func TestVersionCompatible(t *testing.T) {
	if !CurrentVersion.Compatible() {
		t.Error("CurrentVersion should be compatible with itself")
	}
	if !(ProtocolVersion{Major: CurrentVersion.Major, Minor: CurrentVersion.Minor + 1}).Compatible() {
		t.Error("minor version bump should stay compatible")
	}
	if (ProtocolVersion{Major: CurrentVersion.Major + 1}).Compatible() {
		t.Error("major version bump should be incompatible")
	}
}

func TestHandshakeStatusString(t *testing.T) {
	if HandshakeOK.String() != "OK" || HandshakeVersionMismatch.String() != "VersionMismatch" {
		t.Error("unexpected status strings")
	}
	if HandshakeStatus(0x7F).String() != "Unknown" {
		t.Error("unknown status should print Unknown")
	}
}
