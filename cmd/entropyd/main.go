package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"

	entropy "github.com/unkn0wn-root/entropyd"
	"github.com/unkn0wn-root/entropyd/feed"
	"github.com/unkn0wn-root/entropyd/server"
)

var log = logging.MustGetLogger("entropyd")

func main() {
	var (
		bind  = flag.String("bind", fmt.Sprintf(":%d", server.DefaultPort), "entropy listen address")
		admin = flag.String("admin", "", "admin/stats listen address (empty=disabled)")

		slice     = flag.Int("slice", entropy.DefaultSliceBytes, "bytes per entropy slice")
		mouseBits = flag.Float64("mouse-bits", entropy.DefaultMouseBitsPerSample, "estimate credit per mouse sample")
		keyBits   = flag.Float64("key-bits", entropy.DefaultKeyBitsPerSample, "estimate credit per key sample")
		debounce  = flag.Uint("debounce", entropy.DefaultDebounceMS, "minimum ms between contributing samples")

		feedName = flag.String("feed", "jitter", "event source: jitter")
		interval = flag.Duration("feed-interval", 5*time.Millisecond, "delay between synthesized samples")

		debug = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	setupLogging(*debug)

	cfg := entropy.Default()
	cfg.SliceBytes = *slice
	cfg.MouseBitsPerSample = *mouseBits
	cfg.KeyBitsPerSample = *keyBits
	cfg.DebounceMS = uint32(*debounce)

	var src feed.Source
	switch *feedName {
	case "jitter":
		src = &feed.JitterSource{Interval: *interval}
	default:
		log.Fatalf("unknown feed %q", *feedName)
	}

	slotter := entropy.NewSlotter(cfg.SliceBytes)
	stats := entropy.NewStats()
	harv := feed.NewHarvester(cfg, src, slotter)

	scfg := server.Default()
	scfg.BindAddr = *bind
	scfg.AdminAddr = *admin

	srv := server.New(scfg, slotter, stats)
	srv.Progress = func() server.Progress {
		p := harv.Progress()
		return server.Progress{Entropy: p.Entropy, Requested: p.Requested, Slices: p.Slices}
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- harv.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Infof("signal %s, shutting down", s)
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			srv.Stop()
			log.Fatalf("harvester: %v", err)
		}
	}

	cancel()
	srv.Stop()
}

func setupLogging(debug bool) {
	backend := logging.NewLogBackend(os.Stderr, "entropyd: ", 0)
	formatter := logging.MustStringFormatter("%{time:15:04:05.000} %{module} %{level}: %{message}")
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, formatter))
	if debug {
		leveled.SetLevel(logging.DEBUG, "")
	} else {
		leveled.SetLevel(logging.INFO, "")
	}
	logging.SetBackend(leveled)
}
