package lease

import "testing"

func TestCanAcquire(t *testing.T) {
	if !CanAcquire(1000, "", 0) {
		t.Fatal("expected acquire to succeed with no current owner")
	}
	if CanAcquire(1000, "w1", 2000) {
		t.Fatal("expected acquire to fail against a live lease")
	}
	if !CanAcquire(1000, "w1", 999) {
		t.Fatal("expected acquire to succeed against an expired lease")
	}
}

func TestCanRenew(t *testing.T) {
	if !CanRenew(1000, "w1", "w1", 2000) {
		t.Fatal("expected renew to succeed for the current live owner")
	}
	if CanRenew(1000, "w2", "w1", 2000) {
		t.Fatal("expected renew to fail for a different owner")
	}
	if CanRenew(1000, "w1", "w1", 999) {
		t.Fatal("expected renew to fail once expired")
	}
}

func TestCanRelease(t *testing.T) {
	if !CanRelease("w1", "w1") {
		t.Fatal("expected release to succeed for the current owner")
	}
	if CanRelease("w2", "w1") {
		t.Fatal("expected release to fail for a different owner")
	}
	if CanRelease("w1", "") {
		t.Fatal("expected release to fail with no current owner")
	}
}
