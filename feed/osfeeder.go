package feed

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	entropy "github.com/unkn0wn-root/entropyd"
)

const (
	defaultJitterInterval = 5 * time.Millisecond
	defaultKeyEvery       = 8

	// synthesized cursor coordinates stay inside a plausible screen
	jitterScreenSpan = 4096
)

// JitterSource synthesizes input samples for machines without an
// interactive input tap: positions and scan codes come from the OS CSPRNG,
// ticks from the monotonic clock. It stands in for a human at the desk;
// the estimator still paces slice emission through the usual dedup and
// debounce bookkeeping.
type JitterSource struct {
	Interval time.Duration // delay between samples
	KeyEvery int           // every nth sample is a key transition
}

func (j *JitterSource) CursorPos() (entropy.CursorPos, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return entropy.CursorPos{}, err
	}
	return entropy.CursorPos{
		X: int32(binary.LittleEndian.Uint32(b[0:4]) % jitterScreenSpan),
		Y: int32(binary.LittleEndian.Uint32(b[4:8]) % jitterScreenSpan),
	}, nil
}

func (j *JitterSource) Events(ctx context.Context) (<-chan entropy.Event, error) {
	interval := j.Interval
	if interval <= 0 {
		interval = defaultJitterInterval
	}
	keyEvery := j.KeyEvery
	if keyEvery <= 0 {
		keyEvery = defaultKeyEvery
	}

	ch := make(chan entropy.Event)
	start := time.Now()

	go func() {
		defer close(ch)

		tick := func() uint32 {
			return uint32(time.Since(start) / time.Millisecond)
		}

		t := time.NewTicker(interval)
		defer t.Stop()

		var seq int
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			var b [9]byte
			if _, err := rand.Read(b[:]); err != nil {
				log.Errorf("os entropy read: %v", err)
				return
			}

			seq++
			var ev entropy.Event
			if seq%keyEvery == 0 {
				ev = entropy.KeySampleFromCode(uint32(b[8]), tick(), b[0]&1 == 1)
			} else {
				ev = entropy.MouseSample{
					X:    int32(binary.LittleEndian.Uint32(b[0:4]) % jitterScreenSpan),
					Y:    int32(binary.LittleEndian.Uint32(b[4:8]) % jitterScreenSpan),
					Tick: tick(),
				}
			}

			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()

	return ch, nil
}
