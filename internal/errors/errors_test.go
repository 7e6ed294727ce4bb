package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantMsg  string
		wantCat  Category
		wantExit int
	}{
		{
			name:     "shm error",
			code:     "E100",
			wantMsg:  "Failed to create shared memory segment",
			wantCat:  CategoryShm,
			wantExit: ExitShm,
		},
		{
			name:     "already running",
			code:     "E110",
			wantMsg:  "Could not bind socket",
			wantCat:  CategorySocket,
			wantExit: ExitRunning,
		},
		{
			name:     "no device",
			code:     "E130",
			wantMsg:  "No HMD found",
			wantCat:  CategoryDevice,
			wantExit: ExitDevice,
		},
		{
			name:     "protocol error has generic exit",
			code:     "E150",
			wantMsg:  "Server busy",
			wantCat:  CategoryProtocol,
			wantExit: ExitGeneric,
		},
		{
			name:     "unknown error code",
			code:     "E999",
			wantMsg:  "Unknown error",
			wantCat:  "",
			wantExit: ExitGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
			if got := err.ExitCode(); got != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantExit)
			}
		})
	}
}

func TestStartupExitCodesDistinct(t *testing.T) {
	seen := map[int]string{}
	for _, code := range []string{"E100", "E110", "E111", "E112", "E120", "E130", "E140"} {
		exit := New(code).ExitCode()
		if exit >= 0 {
			t.Errorf("%s ExitCode() = %d, want negative", code, exit)
		}
		if prev, ok := seen[exit]; ok {
			t.Errorf("%s shares exit code %d with %s", code, exit, prev)
		}
		seen[exit] = code
	}
}

func TestXRError_Error(t *testing.T) {
	err := New("E130")
	if got, want := err.Error(), "E130: No HMD found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := New("E100").Wrap(stderrors.New("no space left on device"))
	if got, want := wrapped.Error(), "E100: Failed to create shared memory segment: no space left on device"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &XRError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestUnwrap(t *testing.T) {
	sentinel := stderrors.New("server: already running")
	err := New("E110").Wrap(sentinel)
	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E100") != nil {
		t.Error("FromError(nil) should be nil")
	}

	base := stderrors.New("boom")
	xe := FromError(base, "E120")
	if xe.Code != "E120" || xe.Wrapped != base {
		t.Errorf("FromError() = %+v, want E120 wrapping base", xe)
	}

	inner := New("E130")
	outer := fmt.Errorf("init: %w", inner)
	if got := FromError(outer, "E100"); got != inner {
		t.Errorf("FromError() = %v, want the XRError already in the chain", got)
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(stderrors.New("x")); got != ExitGeneric {
		t.Errorf("ExitCode(plain) = %d, want %d", got, ExitGeneric)
	}
	err := fmt.Errorf("serve: %w", New("E111"))
	if got := ExitCode(err); got != ExitActivated {
		t.Errorf("ExitCode(wrapped E111) = %d, want %d", got, ExitActivated)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E110").Wrap(stderrors.New("address already in use"))
	out := err.Format()
	for _, want := range []string{"ERROR E110: Could not bind socket", "Cause: address already in use", "Hint: Is the service running already?"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	if got, want := err.FormatCompact(), "E110: Could not bind socket (address already in use)"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("PrintError(plain) = %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, New("E141"))
	if !strings.Contains(buf.String(), "E141: Configuration file not found") {
		t.Errorf("PrintError(XRError) = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven" {
		t.Errorf("wrapText() lost words: %v", lines)
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestRegistryLookups(t *testing.T) {
	if len(GetAllCodes()) != len(registry) {
		t.Error("GetAllCodes() length mismatch")
	}
	if _, ok := GetTemplate("E101"); !ok {
		t.Error("GetTemplate(E101) not found")
	}
	if _, ok := GetTemplate("E001"); ok {
		t.Error("GetTemplate(E001) should not exist")
	}
}
