package guard

import (
	"testing"
	"time"
)

func fixedGuard(window time.Duration, start time.Time) (*Guard, *time.Time) {
	g := New(window)
	now := start
	g.now = func() time.Time { return now }
	return g, &now
}

func TestShouldProcess_duplicateInsideWindow(t *testing.T) {
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	g, now := fixedGuard(2*time.Second, base)

	if !g.ShouldProcess(1, "tarot") {
		t.Fatal("first click rejected")
	}
	*now = base.Add(500 * time.Millisecond)
	if g.ShouldProcess(1, "tarot") {
		t.Error("duplicate 500ms later accepted")
	}
}

func TestShouldProcess_acceptsAfterWindow(t *testing.T) {
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	g, now := fixedGuard(2*time.Second, base)

	g.ShouldProcess(1, "tarot")
	*now = base.Add(2500 * time.Millisecond)
	if !g.ShouldProcess(1, "tarot") {
		t.Error("click after the window rejected")
	}
}

func TestShouldProcess_burstSuppressedAsAWhole(t *testing.T) {
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	g, now := fixedGuard(2*time.Second, base)

	g.ShouldProcess(1, "tarot")

	// Duplicates do not refresh the window: a click a hair after the
	// original's window ends is accepted even though a duplicate landed
	// in between.
	*now = base.Add(1900 * time.Millisecond)
	if g.ShouldProcess(1, "tarot") {
		t.Fatal("duplicate inside window accepted")
	}
	*now = base.Add(2100 * time.Millisecond)
	if !g.ShouldProcess(1, "tarot") {
		t.Error("window was refreshed by a suppressed duplicate")
	}
}

func TestShouldProcess_distinctKeysIndependent(t *testing.T) {
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	g, _ := fixedGuard(2*time.Second, base)

	if !g.ShouldProcess(1, "tarot") {
		t.Fatal("first click rejected")
	}
	if !g.ShouldProcess(1, "horoscope") {
		t.Error("different action for the same user suppressed")
	}
	if !g.ShouldProcess(2, "tarot") {
		t.Error("same action for a different user suppressed")
	}
}

func TestNew_defaultWindow(t *testing.T) {
	g := New(0)
	if g.window != DefaultWindow {
		t.Errorf("window = %v, want %v", g.window, DefaultWindow)
	}
	g = New(-time.Second)
	if g.window != DefaultWindow {
		t.Errorf("window = %v, want %v", g.window, DefaultWindow)
	}
}

func TestCleanup_removesExpiredEntries(t *testing.T) {
	g := New(10 * time.Millisecond)
	g.ShouldProcess(1, "tarot")
	if g.Len() != 1 {
		t.Fatalf("Len = %d, want 1", g.Len())
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if g.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("entry never cleaned up, Len = %d", g.Len())
}
