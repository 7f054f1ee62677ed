package logger

import "testing"

func TestLimiterAllowCap(t *testing.T) {
	l := NewLimiter(3)

	for i := 1; i <= 3; i++ {
		ok, n := l.Allow("missing-texture")
		if !ok {
			t.Errorf("occurrence %d: expected allowed", i)
		}
		if n != i {
			t.Errorf("occurrence %d: got count %d", i, n)
		}
	}

	ok, n := l.Allow("missing-texture")
	if ok {
		t.Error("expected fourth occurrence to be suppressed")
	}
	if n != 4 {
		t.Errorf("expected count 4, got %d", n)
	}
}

func TestLimiterKeysIndependent(t *testing.T) {
	l := NewLimiter(1)

	if ok, _ := l.Allow("a"); !ok {
		t.Error("first occurrence of key a should be allowed")
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Error("first occurrence of key b should be allowed")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Error("second occurrence of key a should be suppressed")
	}
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(1)
	l.Allow("a")
	l.Allow("a")

	l.Reset()

	if ok, n := l.Allow("a"); !ok || n != 1 {
		t.Errorf("expected fresh count after reset, got ok=%v n=%d", ok, n)
	}
}

func TestLimiterMinimumCap(t *testing.T) {
	l := NewLimiter(0)

	if ok, _ := l.Allow("x"); !ok {
		t.Error("first occurrence should always be allowed")
	}
	if ok, _ := l.Allow("x"); ok {
		t.Error("cap of 0 should behave as cap of 1")
	}
}
