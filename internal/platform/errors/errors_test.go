package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "chat is missing")
	if !errors.Is(err, New(CodeNotFound, "different message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(err, New(CodeNotAuthorized, "chat is missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorageFailure, "put message", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
	if err.Error() != "put message" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "put message")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"domain error", New(CodeEditWindowExpired, "too late"), CodeEditWindowExpired},
		{"wrapped domain error", fmt.Errorf("handler: %w", New(CodeNotFound, "gone")), CodeNotFound},
		{"plain error", errors.New("plain"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWireCode(t *testing.T) {
	if got := CodeEditWindowExpired.WireCode(); got != "EDIT_WINDOW_EXPIRED" {
		t.Fatalf("WireCode() = %q, want EDIT_WINDOW_EXPIRED", got)
	}
	if got := Code("SOMETHING_ELSE").WireCode(); got != "UNKNOWN" {
		t.Fatalf("WireCode() = %q, want UNKNOWN", got)
	}
}
