package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *ParseError
		want string
	}{
		{
			name: "with format",
			err:  &ParseError{Format: "TTML", Message: "unexpected end tag"},
			want: "failed to parse TTML: unexpected end tag",
		},
		{
			name: "without format",
			err:  &ParseError{Message: "bad input"},
			want: "parse failed: bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("ParseError should unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestParseErrorWrapping(t *testing.T) {
	inner := errors.New("inner cause")
	err := &ParseError{Format: "TTML", Message: "broken", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ParseError with Err should unwrap to inner error")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError with Err should still match ErrInvalidInput")
	}
}

func TestValidationErrorWrapping(t *testing.T) {
	inner := errors.New("xml: syntax error")
	err := &ValidationError{Message: "malformed document", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ValidationError with Err should unwrap to inner error")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError with Err should still match ErrInvalidInput")
	}
}

func TestInvalidTimeError(t *testing.T) {
	err := NewInvalidTime("1:2:3:4", "too many parts")
	want := `invalid time "1:2:3:4": too many parts`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("InvalidTimeError should unwrap to ErrInvalidInput")
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "agent", Message: "missing id"}
	if err.Error() != "validation failed for agent: missing id" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}
}

func TestIOError(t *testing.T) {
	inner := errors.New("permission denied")
	err := &IOError{Operation: "read", Path: "/tmp/x.ttml", Err: inner}
	if err.Error() != "failed to read /tmp/x.ttml: permission denied" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("IOError should unwrap to inner error")
	}
}

func TestAsHelpers(t *testing.T) {
	var target *InvalidTimeError
	wrapped := fmt.Errorf("context: %w", NewInvalidTime("-5s", "negative"))
	if !As(wrapped, &target) {
		t.Fatal("As should find InvalidTimeError in chain")
	}
	if target.Value != "-5s" {
		t.Errorf("Value = %q, want -5s", target.Value)
	}
	if !Is(wrapped, ErrInvalidInput) {
		t.Error("Is should match ErrInvalidInput through the chain")
	}
}
