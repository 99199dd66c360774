package entropy

import (
	"bytes"
	"errors"
	"testing"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregator(Default(), CursorPos{})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return a
}

// feedContributingTail pushes 107 distinct, debounce-spaced mouse samples:
// 107 x 1.5 bits crosses the 160-bit target on the last one.
func feedContributingTail(t *testing.T, a *Aggregator) {
	t.Helper()
	for i := 1; i <= 107; i++ {
		ev := MouseSample{X: int32(i), Y: int32(i), Tick: uint32(i) * 150}
		if !a.HandleMouse(ev) {
			t.Fatalf("sample %d did not contribute", i)
		}
	}
}

func TestMouseThreshold(t *testing.T) {
	a := newTestAggregator(t)

	for i := 1; i <= 107; i++ {
		ev := MouseSample{X: int32(i), Y: int32(i), Tick: uint32(i) * 150}
		if !a.HandleMouse(ev) {
			t.Fatalf("sample %d did not contribute", i)
		}
		if i < 107 && a.EnoughEntropy() {
			t.Fatalf("threshold reached early at sample %d (%.1f bits)", i, a.Entropy())
		}
	}
	if !a.EnoughEntropy() {
		t.Fatalf("threshold not reached after 107 samples (%.1f bits)", a.Entropy())
	}

	if err := a.PrepareSlice(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	slice, err := a.TakeSlice()
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(slice) != DefaultSliceBytes {
		t.Fatalf("slice length = %d, want %d", len(slice), DefaultSliceBytes)
	}
}

func TestMouseDebounce(t *testing.T) {
	a := newTestAggregator(t)

	if a.HandleMouse(MouseSample{X: 5, Y: 5, Tick: 0}) {
		t.Fatal("sample inside debounce window contributed")
	}
	if a.HandleMouse(MouseSample{X: 5, Y: 5, Tick: 50}) {
		t.Fatal("sample inside debounce window contributed")
	}
	if a.Entropy() != 0 {
		t.Fatalf("entropy = %v, want 0", a.Entropy())
	}

	if !a.HandleMouse(MouseSample{X: 1, Y: 1, Tick: 200}) {
		t.Fatal("moved sample outside debounce window did not contribute")
	}
	if a.Entropy() != 1.5 {
		t.Fatalf("entropy = %v, want 1.5", a.Entropy())
	}
}

func TestStationaryMouseNeverContributes(t *testing.T) {
	a := newTestAggregator(t)

	for i := 0; i < 20; i++ {
		if a.HandleMouse(MouseSample{X: 0, Y: 0, Tick: uint32(i) * 1000}) {
			t.Fatalf("stationary sample %d contributed", i)
		}
	}
	if a.Entropy() != 0 {
		t.Fatalf("entropy = %v, want 0", a.Entropy())
	}
}

func TestKeyReleaseBypassesDebounce(t *testing.T) {
	a := newTestAggregator(t)

	if !a.HandleKey(KeySample{Scan: 0x1, Tick: 10, Up: true}) {
		t.Fatal("release did not contribute")
	}
	if a.Entropy() != 1.0 {
		t.Fatalf("entropy = %v, want 1.0", a.Entropy())
	}
}

func TestKeyPressDedupAndDebounce(t *testing.T) {
	a := newTestAggregator(t)

	if !a.HandleKey(KeySample{Scan: 0x1, Tick: 200, Up: false}) {
		t.Fatal("fresh scan code outside debounce window did not contribute")
	}
	// same scan code: never contributes as a press, regardless of tick
	if a.HandleKey(KeySample{Scan: 0x1, Tick: 900, Up: false}) {
		t.Fatal("repeated scan code contributed")
	}
	// new scan code but inside the window
	if a.HandleKey(KeySample{Scan: 0x2, Tick: 250, Up: false}) {
		t.Fatal("sample inside debounce window contributed")
	}
	if !a.HandleKey(KeySample{Scan: 0x2, Tick: 400, Up: false}) {
		t.Fatal("fresh scan code outside debounce window did not contribute")
	}
}

func TestEntropyNeverDecreases(t *testing.T) {
	a := newTestAggregator(t)

	prev := a.Entropy()
	events := []Event{
		MouseSample{X: 1, Y: 1, Tick: 150},
		MouseSample{X: 1, Y: 1, Tick: 160},
		KeySample{Scan: 0x3, Tick: 400, Up: false},
		KeySample{Scan: 0x3, Tick: 600, Up: false},
		KeySample{Scan: 0x3, Tick: 601, Up: true},
		MouseSample{X: 7, Y: 2, Tick: 900},
	}
	for i, ev := range events {
		a.Handle(ev)
		if a.Entropy() < prev {
			t.Fatalf("entropy decreased after event %d: %v -> %v", i, prev, a.Entropy())
		}
		prev = a.Entropy()
	}
}

func TestTickWraparound(t *testing.T) {
	a := newTestAggregator(t)

	if !a.HandleMouse(MouseSample{X: 1, Y: 1, Tick: 0xFFFFFF00}) {
		t.Fatal("pre-wrap sample did not contribute")
	}
	// uint32 subtraction: 100 - 0xFFFFFF00 = 356 > debounce
	if !a.HandleMouse(MouseSample{X: 2, Y: 2, Tick: 100}) {
		t.Fatal("post-wrap sample did not contribute")
	}
}

func TestNonContributingSamplesStillReachDigest(t *testing.T) {
	cfg := Default()
	a1, err := NewAggregator(cfg, CursorPos{})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	a2, err := NewAggregator(cfg, CursorPos{})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	// stationary prefix: hashed, zero credit
	for i := 0; i < 50; i++ {
		if a1.HandleMouse(MouseSample{X: 0, Y: 0, Tick: uint32(i)}) {
			t.Fatalf("stationary sample %d contributed", i)
		}
	}
	if a1.Entropy() != 0 {
		t.Fatalf("entropy = %v after stationary prefix, want 0", a1.Entropy())
	}

	take := func(a *Aggregator) []byte {
		feedContributingTail(t, a)
		if err := a.PrepareSlice(); err != nil {
			t.Fatalf("prepare: %v", err)
		}
		s, err := a.TakeSlice()
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		return s
	}

	s1 := take(a1)
	s2 := take(a2)
	if bytes.Equal(s1, s2) {
		t.Fatal("digest ignored the non-contributing prefix")
	}
}

func TestPrepareBeforeThreshold(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.PrepareSlice(); !errors.Is(err, ErrNotEnough) {
		t.Fatalf("prepare error = %v, want ErrNotEnough", err)
	}
	if _, err := a.TakeSlice(); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("take error = %v, want ErrNotPrepared", err)
	}
}

func TestSpentAggregator(t *testing.T) {
	a := newTestAggregator(t)
	feedContributingTail(t, a)

	if err := a.PrepareSlice(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := a.TakeSlice(); err != nil {
		t.Fatalf("take: %v", err)
	}

	if err := a.PrepareSlice(); !errors.Is(err, ErrSpent) {
		t.Fatalf("prepare on spent aggregator = %v, want ErrSpent", err)
	}
	if _, err := a.TakeSlice(); !errors.Is(err, ErrSpent) {
		t.Fatalf("take on spent aggregator = %v, want ErrSpent", err)
	}
}

func TestSliceTooLongForDigest(t *testing.T) {
	cfg := Default()
	cfg.SliceBytes = 40
	if _, err := NewAggregator(cfg, CursorPos{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestKeySampleFromCodeMasksLowNibble(t *testing.T) {
	k := KeySampleFromCode(0xAB, 10, false)
	if k.Scan != 0x0B {
		t.Fatalf("scan = %#x, want 0x0B", k.Scan)
	}
}
