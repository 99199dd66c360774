package entropy

import (
	"crypto/sha1"
	"hash"
)

// Aggregator condenses a stream of input events into one slice of exactly
// SliceBytes bytes. Every sample is absorbed into the digest; only samples
// that pass the dedup/debounce predicate advance the entropy estimate. The
// hash absorbs liberally while the estimator stays strict: un-estimated
// bits still end up in the slice, the counter just never credits them.
//
// Lifecycle: NewAggregator → Handle* → PrepareSlice → TakeSlice. After
// TakeSlice the aggregator is spent; the caller starts a fresh one for the
// next slice.
type Aggregator struct {
	cfg       Config
	entropy   float64 // running estimate, bits
	requested uint32  // target, bits
	lastPos   CursorPos
	lastScan  uint8
	lastTick  uint32 // tick of the last contributing sample, mouse or key
	hasher    hash.Hash
	out       []byte
	spent     bool
}

// NewAggregator starts a fresh harvesting session seeded with the current
// cursor position. The configured slice length must fit the digest.
func NewAggregator(cfg Config, initial CursorPos) (*Aggregator, error) {
	cfg.FillDefaults()
	if cfg.SliceBytes <= 0 || cfg.SliceBytes > sha1.Size {
		return nil, ErrInvalidConfig
	}
	return &Aggregator{
		cfg:       cfg,
		requested: uint32(cfg.SliceBytes) * 8,
		lastPos:   initial,
		hasher:    sha1.New(),
	}, nil
}

// Requested returns the estimate target in bits.
func (a *Aggregator) Requested() uint32 { return a.requested }

// Entropy returns the current estimate in bits. It never decreases over the
// aggregator's lifetime.
func (a *Aggregator) Entropy() float64 { return a.entropy }

// EnoughEntropy reports whether the estimate has reached the target.
func (a *Aggregator) EnoughEntropy() bool { return a.entropy >= float64(a.requested) }

// Handle dispatches on the event variant. See HandleMouse and HandleKey.
func (a *Aggregator) Handle(ev Event) bool {
	switch e := ev.(type) {
	case MouseSample:
		return a.HandleMouse(e)
	case KeySample:
		return a.HandleKey(e)
	}
	return false
}

// HandleMouse absorbs one mouse sample and reports whether it advanced the
// estimate. A sample contributes only when the cursor actually moved and
// the debounce window since the last contribution has passed. The debounce
// compare is uint32 subtraction, so tick wraparound over long sessions is
// tolerated.
func (a *Aggregator) HandleMouse(ev MouseSample) bool {
	var rec [encodedSampleLen]byte
	ev.encodeTo(rec[:])
	a.hasher.Write(rec[:])

	if (ev.X != a.lastPos.X || ev.Y != a.lastPos.Y) && ev.Tick-a.lastTick > a.cfg.DebounceMS {
		a.lastPos = CursorPos{X: ev.X, Y: ev.Y}
		a.lastTick = ev.Tick
		a.entropy += a.cfg.MouseBitsPerSample
		return true
	}
	return false
}

// HandleKey absorbs one key sample and reports whether it advanced the
// estimate. Releases always contribute; presses contribute only for a new
// scan code outside the debounce window.
func (a *Aggregator) HandleKey(ev KeySample) bool {
	var rec [encodedSampleLen]byte
	ev.encodeTo(rec[:])
	a.hasher.Write(rec[:])

	if ev.Up || (ev.Scan != a.lastScan && ev.Tick-a.lastTick > a.cfg.DebounceMS) {
		a.lastScan = ev.Scan
		a.lastTick = ev.Tick
		a.entropy += a.cfg.KeyBitsPerSample
		return true
	}
	return false
}

// PrepareSlice finalizes the digest into the internal slice buffer. It
// fails with ErrNotEnough below the target and ErrSpent after TakeSlice.
func (a *Aggregator) PrepareSlice() error {
	if a.spent {
		return ErrSpent
	}
	if !a.EnoughEntropy() {
		return ErrNotEnough
	}
	sum := a.hasher.Sum(nil)
	a.out = sum[:a.cfg.SliceBytes]
	return nil
}

// TakeSlice transfers ownership of the prepared slice to the caller and
// leaves the aggregator spent.
func (a *Aggregator) TakeSlice() ([]byte, error) {
	if a.spent {
		return nil, ErrSpent
	}
	if a.out == nil {
		return nil, ErrNotPrepared
	}
	out := a.out
	a.out = nil
	a.spent = true
	return out, nil
}
