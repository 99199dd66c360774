// Package feed supplies input events to the harvesting side and drives
// aggregator lifetimes over them. Interactive input taps are platform glue
// and live outside this module; what ships here is the source contract and
// a jitter feeder for headless machines.
package feed

import (
	"context"

	"github.com/op/go-logging"

	entropy "github.com/unkn0wn-root/entropyd"
)

var log = logging.MustGetLogger("entropyd/feed")

// Source produces the input events a harvesting session consumes.
// CursorPos seeds each fresh session; a source that cannot produce one
// fails session init. Events delivers samples until the context is done or
// the source dries up, signalled by closing the channel.
type Source interface {
	CursorPos() (entropy.CursorPos, error)
	Events(ctx context.Context) (<-chan entropy.Event, error)
}
