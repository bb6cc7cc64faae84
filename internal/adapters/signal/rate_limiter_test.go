package signal

import (
	"testing"
	"time"
)

func TestFrameLimiter_EnforcesWindow(t *testing.T) {
	l := newFrameLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !l.Allow("c1") {
			t.Fatalf("frame %d should be allowed", i)
		}
	}
	if l.Allow("c1") {
		t.Fatal("fourth frame inside the window should be refused")
	}

	// Another connection has its own window.
	if !l.Allow("c2") {
		t.Fatal("other connections are not affected")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow("c1") {
		t.Fatal("window expiry should readmit frames")
	}
}

func TestFrameLimiter_ZeroLimitDisables(t *testing.T) {
	l := newFrameLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !l.Allow("c1") {
			t.Fatal("zero limit must never refuse")
		}
	}
}

func TestFrameLimiter_ForgetResets(t *testing.T) {
	l := newFrameLimiter(1, time.Hour)
	if !l.Allow("c1") {
		t.Fatal("first frame allowed")
	}
	if l.Allow("c1") {
		t.Fatal("second frame refused")
	}
	l.Forget("c1")
	if !l.Allow("c1") {
		t.Fatal("Forget should reset the window")
	}
}
