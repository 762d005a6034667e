package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseMemory,
				Kind:   KindOutOfBounds,
				Detail: "range [10, 20) outside memory",
			},
			contains: []string{"[memory]", "out_of_bounds", "range [10, 20)"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRegistry,
				Kind:  KindInvalidHandle,
			},
			contains: []string{"[registry]", "invalid_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindLoad,
				Detail: "instantiate",
				Cause:  errors.New("unknown import env.foo"),
			},
			contains: []string{"[load]", "load_error", "instantiate", "caused by", "unknown import env.foo"},
		},
		{
			name:     "sentinel without phase",
			err:      ErrBufferOverflow,
			contains: []string{"buffer_overflow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseTransport,
		Kind:  KindFetch,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through the chain")
	}
}

func TestError_Is(t *testing.T) {
	err := InvalidHandle(PhaseMemory, 3)

	if !err.Is(&Error{Phase: PhaseMemory, Kind: KindInvalidHandle}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseRegistry, Kind: KindInvalidHandle}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseMemory, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrInvalidHandle) {
		t.Error("sentinel without phase should match any phase")
	}
	if errors.Is(err, ErrInvalidLength) {
		t.Error("sentinel of another kind should not match")
	}
}

func TestError_IsThroughWrap(t *testing.T) {
	inner := BufferOverflow(PhaseResource, 32, 16)
	outer := Load("init", inner)

	if !errors.Is(outer, ErrLoad) {
		t.Error("outer should match ErrLoad")
	}
	if !errors.Is(outer, ErrBufferOverflow) {
		t.Error("wrapped cause should match ErrBufferOverflow")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMemory, KindOutOfBounds).
		Value(42).
		Cause(cause).
		Detail("offset %d past %s", 42, "end").
		Build()

	if err.Phase != PhaseMemory {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseMemory)
	}
	if err.Kind != KindOutOfBounds {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "offset 42 past end" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidLength", func(t *testing.T) {
		err := InvalidLength(PhaseMemory, 6, 4)
		if err.Kind != KindInvalidLength {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidLength)
		}
		if !strings.Contains(err.Detail, "6") {
			t.Errorf("Detail = %v, should contain length", err.Detail)
		}
	})

	t.Run("InvalidEncoding", func(t *testing.T) {
		data := make([]byte, 64)
		data[0] = 0xff
		err := InvalidEncoding(PhaseMemory, data)
		if err.Kind != KindInvalidEncoding {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidEncoding)
		}
		if strings.Count(err.Detail, "00") > 32 {
			t.Errorf("Detail should preview at most 32 bytes: %v", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMemory, 0xFFFFFFF0, 0x20, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if !strings.Contains(err.Detail, "4294967312") {
			t.Errorf("Detail should not wrap around: %v", err.Detail)
		}
	})

	t.Run("UpdateTrap", func(t *testing.T) {
		err := UpdateTrap(2, errors.New("unreachable"))
		if err.Kind != KindUpdateTrap || err.Phase != PhaseSchedule {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Value != uint32(2) {
			t.Errorf("Value = %v, want 2", err.Value)
		}
	})

	t.Run("Fetch", func(t *testing.T) {
		err := Fetch("assets/a.bin", errors.New("404"))
		if !errors.Is(err, ErrFetch) {
			t.Error("Fetch should match ErrFetch")
		}
	})
}

func TestSignatureError(t *testing.T) {
	err := &SignatureError{Exports: []MismatchedExport{
		{Name: "init", Want: "(i32) -> ()"},
		{Name: "update", Want: "() -> ()", Got: "(i32) -> ()"},
	}}

	msg := err.Error()
	for _, s := range []string{"init: missing", "update: got (i32) -> ()"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q does not contain %q", msg, s)
		}
	}

	if !errors.Is(err, &SignatureError{}) {
		t.Error("should match *SignatureError")
	}
	if !errors.Is(Load("validate", err), &Error{Kind: KindSignature}) {
		t.Error("wrapped signature error should match KindSignature")
	}
}
