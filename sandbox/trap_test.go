package sandbox

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyMapsKnownMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want TrapKind
	}{
		{"wasm error: out of bounds memory access", TrapMemoryAccessOutOfBounds},
		{"wasm error: unreachable", TrapAssertionPanic},
		{"wasm error: integer overflow", TrapIntegerOverflow},
		{"wasm error: integer divide by zero", TrapDivideByZero},
		{"wasm error: call stack exhausted", TrapStackOverflow},
		{"wasm error: indirect call type mismatch", TrapFunctionTypeMismatch},
		{"wasm error: invalid conversion to integer", TrapNullReference},
		{"something entirely unrecognized happened", TrapGeneric},
	}
	for _, c := range cases {
		trap := classify("update", errors.New(c.msg))
		if trap.Kind != c.want {
			t.Errorf("classify(%q) = %v, want %v", c.msg, trap.Kind, c.want)
		}
	}
}

func TestClassifyNilErrorReturnsNilTrap(t *testing.T) {
	if classify("update", nil) != nil {
		t.Fatal("expected classify(nil) to return nil")
	}
}

func TestTrapFatalClassification(t *testing.T) {
	if !TrapMemoryAccessOutOfBounds.Fatal() {
		t.Error("expected out-of-bounds memory access to be fatal")
	}
	if TrapDivideByZero.Fatal() {
		t.Error("did not expect divide-by-zero to be fatal")
	}
}

func TestTrapErrorIncludesExportAndKind(t *testing.T) {
	trap := classify("render", errors.New("wasm error: unreachable"))
	msg := trap.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if !strings.Contains(msg, "render") {
		t.Fatalf("expected error message to name the export, got %q", msg)
	}
	if !strings.Contains(msg, TrapAssertionPanic.String()) {
		t.Fatalf("expected error message to name the trap kind, got %q", msg)
	}
	if !errors.Is(trap, trap.Cause) {
		t.Fatal("expected Unwrap to expose the underlying cause")
	}
}
