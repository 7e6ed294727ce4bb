package server

import (
	"errors"
	"io"
	"testing"
)

func TestClientError(t *testing.T) {
	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{"with client", NewClientError("c1", "handshake", io.EOF), "server: client c1: handshake: EOF"},
		{"without client", NewClientError("", "accept", io.EOF), "server: accept: EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, io.EOF) {
				t.Error("errors.Is(err, io.EOF) = false")
			}
		})
	}
}
