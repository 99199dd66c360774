package server

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/op/go-logging"

	entropy "github.com/unkn0wn-root/entropyd"
)

var log = logging.MustGetLogger("entropyd/server")

// Config groups the listen addresses and buffer sizing of one server.
type Config struct {
	BindAddr    string // entropy endpoint
	AdminAddr   string // stats endpoint; empty disables it
	DataBufSize int    // per-connection buffer, floor DataBufSize
}

func Default() Config {
	return Config{
		BindAddr:    fmt.Sprintf(":%d", DefaultPort),
		DataBufSize: DataBufSize,
	}
}

// Progress is the harvesting-side snapshot exposed on the admin endpoint.
type Progress struct {
	Entropy   float64
	Requested uint32
	Slices    uint64
}

// Server owns the entropy endpoint and the optional admin endpoint. It
// shares the Slotter it withdraws from with the harvesting side, reports to
// the Stats, and reads harvest progress only through the Progress callback.
// Slotter and Stats take their own lock for the duration of each call and
// are never invoked nested.
type Server struct {
	cfg     Config
	id      string
	slotter *entropy.Slotter
	stats   *entropy.Stats

	// Progress, when set, supplies the harvest snapshot for stats
	// responses.
	Progress func() Progress

	ln       net.Listener
	adminLn  net.Listener
	connSeq  uint64
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs an unstarted Server around an existing reservoir and
// counter. Call Start to begin listening.
func New(cfg Config, slotter *entropy.Slotter, stats *entropy.Stats) *Server {
	if cfg.BindAddr == "" {
		cfg.BindAddr = fmt.Sprintf(":%d", DefaultPort)
	}
	if cfg.DataBufSize < DataBufSize {
		cfg.DataBufSize = DataBufSize
	}
	return &Server{
		cfg:     cfg,
		id:      fmt.Sprintf("%016x", xxhash.Sum64String(cfg.BindAddr)),
		slotter: slotter,
		stats:   stats,
		stop:    make(chan struct{}),
	}
}

// ID returns the instance identifier derived from the bind address.
func (s *Server) ID() string { return s.id }

// Addr returns the entropy endpoint's bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// AdminAddr returns the admin endpoint's bound address, nil when disabled
// or before Start.
func (s *Server) AdminAddr() net.Addr {
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// Start binds the listeners and launches the accept loops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("entropy listen: %w", err)
	}
	s.ln = ln
	go s.acceptLoop(ln)

	if s.cfg.AdminAddr != "" {
		aln, err := net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("admin listen: %w", err)
		}
		s.adminLn = aln
		go s.adminLoop(aln)
		log.Infof("%s: admin endpoint on %s", s.id, aln.Addr())
	}

	log.Infof("%s: serving entropy on %s", s.id, ln.Addr())
	return nil
}

// Stop closes the listeners. Connections already accepted are not closed;
// they keep being served until the peer goes away. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		if s.adminLn != nil {
			_ = s.adminLn.Close()
		}
	})
}

// acceptLoop accepts inbound connections and hands each to serveConn.
// Accepted sockets get linger 0 so a dropped handler closes abortively.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				continue
			}
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetLinger(0)
		}
		go s.serveConn(c)
	}
}

// serveConn drives one connection through the request/response state
// machine: read the 4-byte big-endian count to completion, attempt the
// withdrawal, report to the counter, write the status byte plus payload,
// repeat. The counter is updated before the write, so a request whose
// response fails to send is still counted. A zero-byte read or any I/O
// error drops the connection; peers are never told why.
func (s *Server) serveConn(c net.Conn) {
	defer c.Close()

	id := s.connID(c)
	log.Debugf("conn %s: accepted %s", id, c.RemoteAddr())

	buf := make([]byte, s.cfg.DataBufSize)
	for {
		if _, err := io.ReadFull(c, buf[:RequestLen]); err != nil {
			if err != io.EOF {
				log.Debugf("conn %s: read: %v", id, err)
			}
			return
		}
		count := binary.BigEndian.Uint32(buf[:RequestLen])

		// Responses are assembled in the fixed connection buffer;
		// counts that cannot fit are answered as insufficient.
		ok := false
		if uint64(count) <= uint64(len(buf)-1) {
			ok = s.slotter.Request(buf[1:1+count], count)
		}

		toSend := 1
		if ok {
			buf[0] = StatusSuccess
			toSend = int(count) + 1
		} else {
			buf[0] = StatusInsufficient
		}
		s.stats.RegisterRequest(reqSize(count), ok)

		if _, err := c.Write(buf[:toSend]); err != nil {
			log.Debugf("conn %s: write: %v", id, err)
			return
		}
	}
}

func (s *Server) connID(c net.Conn) string {
	seq := atomic.AddUint64(&s.connSeq, 1)
	return fmt.Sprintf("%08x", xxhash.Sum64String(fmt.Sprintf("%s/%d", c.RemoteAddr(), seq))&0xFFFFFFFF)
}

// reqSize clamps a wire count into the counter's int32 domain.
func reqSize(count uint32) int32 {
	if count > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(count)
}
