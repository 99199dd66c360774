package feed

import (
	"context"
	"fmt"
	"sync"

	entropy "github.com/unkn0wn-root/entropyd"
)

// Progress is a snapshot of the current harvesting session.
type Progress struct {
	Entropy   float64 // estimate of the session in flight, bits
	Requested uint32  // session target, bits
	Slices    uint64  // slices pushed since Run started
}

// Harvester loops aggregator lifetimes over a source's event stream: one
// session gathers until the estimate crosses the target, the finished slice
// goes into the reservoir, and a fresh session starts. The harvester is the
// only owner of the aggregator in flight; it shares nothing with the
// serving side except the Slotter and the Progress snapshot.
type Harvester struct {
	cfg     entropy.Config
	src     Source
	slotter *entropy.Slotter

	mu   sync.Mutex
	prog Progress
}

func NewHarvester(cfg entropy.Config, src Source, slotter *entropy.Slotter) *Harvester {
	cfg.FillDefaults()
	return &Harvester{cfg: cfg, src: src, slotter: slotter}
}

// Progress returns a snapshot of the session in flight. Safe to call from
// other goroutines while Run is active.
func (h *Harvester) Progress() Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prog
}

// Run drives harvesting sessions until the context is cancelled or the
// source closes its event stream. Session init failure and slice
// finalization failure both abort the run; per-sample absorption cannot
// fail.
func (h *Harvester) Run(ctx context.Context) error {
	aggr, err := h.newSession()
	if err != nil {
		return err
	}

	events, err := h.src.Events(ctx)
	if err != nil {
		return fmt.Errorf("event source: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if aggr.Handle(ev) {
				h.setProgress(aggr)
			}
			if !aggr.EnoughEntropy() {
				continue
			}

			if err := aggr.PrepareSlice(); err != nil {
				return fmt.Errorf("finalize slice: %w", err)
			}
			slice, err := aggr.TakeSlice()
			if err != nil {
				return fmt.Errorf("finalize slice: %w", err)
			}
			h.slotter.Push(slice)

			h.mu.Lock()
			h.prog.Slices++
			h.mu.Unlock()
			log.Debugf("slice ready, %d bytes buffered", h.slotter.Available())

			if aggr, err = h.newSession(); err != nil {
				return err
			}
		}
	}
}

// newSession snapshots the cursor and starts a fresh aggregator.
func (h *Harvester) newSession() (*entropy.Aggregator, error) {
	pos, err := h.src.CursorPos()
	if err != nil {
		return nil, fmt.Errorf("session init: %w", err)
	}
	aggr, err := entropy.NewAggregator(h.cfg, pos)
	if err != nil {
		return nil, err
	}
	h.setProgress(aggr)
	return aggr, nil
}

func (h *Harvester) setProgress(a *entropy.Aggregator) {
	h.mu.Lock()
	h.prog.Entropy = a.Entropy()
	h.prog.Requested = a.Requested()
	h.mu.Unlock()
}
