package server

import (
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"
)

// Client speaks the raw entropy protocol: a 4-byte big-endian count out,
// one status byte plus optional payload back. Not safe for concurrent use;
// the protocol itself is strictly request/response per connection.
type Client struct {
	conn net.Conn
}

// Dial connects to an entropy server at addr ("host:port").
func Dial(addr string) (*Client, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Fetch requests count entropy bytes. ErrInsufficient means the server does
// not hold enough bytes right now; io.EOF means the server closed the
// connection before answering.
func (c *Client) Fetch(count uint32) ([]byte, error) {
	var req [RequestLen]byte
	binary.BigEndian.PutUint32(req[:], count)
	if _, err := c.conn.Write(req[:]); err != nil {
		return nil, err
	}

	var status [1]byte
	if _, err := io.ReadFull(c.conn, status[:]); err != nil {
		return nil, err
	}

	switch status[0] {
	case StatusInsufficient:
		return nil, ErrInsufficient
	case StatusSuccess:
		payload := make([]byte, count)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return nil, err
		}
		return payload, nil
	default:
		return nil, ErrBadResponse
	}
}

// AdminClient speaks the framed stats protocol of the admin endpoint.
type AdminClient struct {
	conn  net.Conn
	reqID uint64
}

// DialAdmin connects to a server's admin endpoint.
func DialAdmin(addr string) (*AdminClient, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &AdminClient{conn: c}, nil
}

func (a *AdminClient) Close() error { return a.conn.Close() }

// Stats fetches one counter/progress snapshot.
func (a *AdminClient) Stats() (MsgStatsResp, error) {
	var resp MsgStatsResp

	id := atomic.AddUint64(&a.reqID, 1)
	msg := MsgStats{Base: Base{T: MTStats, ID: id}}
	raw, err := cborEnc.Marshal(&msg)
	if err != nil {
		return resp, err
	}
	if err := writeFrame(a.conn, raw); err != nil {
		return resp, err
	}

	buf, err := readFrame(a.conn, maxAdminFrame)
	if err != nil {
		return resp, err
	}
	if err := cborDec.Unmarshal(buf, &resp); err != nil {
		return resp, err
	}
	if resp.T != MTStatsResp || resp.ID != id {
		return resp, ErrBadResponse
	}
	return resp, nil
}
