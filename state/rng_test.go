package state

import "testing"

func TestRNGIsDeterministicForASeed(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	for i := 0; i < 100; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("generators seeded identically diverged at step %d", i)
		}
	}
}

func TestRNGZeroSeedIsRemapped(t *testing.T) {
	r := NewRNG(0)
	if r.State() == 0 {
		t.Fatal("expected zero seed to be remapped to a non-zero state")
	}
	if r.Next() == 0 {
		// Not a correctness requirement, but a zero output here would be
		// suspicious given the remap above.
		t.Log("Next() returned 0 from a remapped seed; not necessarily a bug but worth a second look")
	}
}

func TestRNGIntNRange(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 1000; i++ {
		v := r.IntN(10)
		if v < 0 || v >= 10 {
			t.Fatalf("IntN(10) returned out-of-range value %d", v)
		}
	}
	if r.IntN(0) != 0 {
		t.Fatal("expected IntN(0) to return 0 rather than divide by zero")
	}
}

func TestRNGFloat64Range(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 1000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64 returned out-of-range value %v", v)
		}
	}
}
