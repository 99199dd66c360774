package server

import (
	"encoding/binary"
	"io"
	"net"

	cbor "github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	em, _ := cbor.CanonicalEncOptions().EncMode()
	dm, _ := (cbor.DecOptions{}).DecMode()
	cborEnc, cborDec = em, dm
}

const maxAdminFrame = 64 << 10

// adminLoop accepts stats connections and hands each to serveAdmin.
func (s *Server) adminLoop(ln net.Listener) {
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
		go s.serveAdmin(c)
	}
}

// serveAdmin answers framed stats requests until the peer goes away or
// sends something unintelligible.
func (s *Server) serveAdmin(c net.Conn) {
	defer c.Close()

	for {
		raw, err := readFrame(c, maxAdminFrame)
		if err != nil {
			return
		}

		var base Base
		if err := cborDec.Unmarshal(raw, &base); err != nil || base.T != MTStats {
			return
		}

		resp := s.statsResp(base.ID)
		out, err := cborEnc.Marshal(&resp)
		if err != nil {
			log.Errorf("stats encode: %v", err)
			return
		}
		if err := writeFrame(c, out); err != nil {
			return
		}
	}
}

func (s *Server) statsResp(id uint64) MsgStatsResp {
	snap := s.stats.Snapshot()
	resp := MsgStatsResp{
		Base:      Base{T: MTStatsResp, ID: id},
		Node:      s.id,
		Available: s.slotter.Available(),
		Counter: CounterMsg{
			Last:         snap.Last,
			LastSuccess:  snap.LastSuccess,
			Max:          snap.Max,
			MaxSuccess:   snap.MaxSuccess,
			Count:        snap.Count,
			SuccessCount: snap.SuccessCount,
		},
	}
	if s.Progress != nil {
		p := s.Progress()
		resp.Entropy = p.Entropy
		resp.Requested = p.Requested
		resp.Slices = p.Slices
	}
	return resp
}

// Frame helpers: 4-byte big-endian length prefix.

func readFrame(c net.Conn, max int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if max > 0 && n > max {
		return nil, errFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
