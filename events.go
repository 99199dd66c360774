package entropy

import "encoding/binary"

// CursorPos is a cursor position in screen coordinates.
type CursorPos struct {
	X, Y int32
}

// Event is one observed input event: either a MouseSample or a KeySample.
type Event interface {
	isEvent()
}

// MouseSample is one observed cursor movement: the position in screen
// coordinates and the monotonic millisecond tick it was seen at.
type MouseSample struct {
	X, Y int32
	Tick uint32
}

// KeySample is one observed key transition. Scan carries only the low
// nibble of the hardware scan code (see KeySampleFromCode); Up marks a
// release.
type KeySample struct {
	Scan uint8
	Tick uint32
	Up   bool
}

func (MouseSample) isEvent() {}
func (KeySample) isEvent()   {}

// scanMask keeps the low nibble of the hardware scan code. The wider bits
// are discarded before the sample is built, so they never reach the hash
// either. Looks like it should be 0xFF, but the estimator's dedup was
// tuned against masked codes and the mask is kept.
const scanMask = 0x0F

// KeySampleFromCode builds a KeySample from a raw hardware scan code,
// applying the low-nibble mask.
func KeySampleFromCode(code uint32, tick uint32, up bool) KeySample {
	return KeySample{Scan: uint8(code & scanMask), Tick: tick, Up: up}
}

// Both sample variants hash as fixed 12-byte little-endian records,
// mirroring the packed event layout the estimator was tuned against.
const encodedSampleLen = 12

func (m MouseSample) encodeTo(rec []byte) {
	binary.LittleEndian.PutUint32(rec[0:4], uint32(m.X))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(m.Y))
	binary.LittleEndian.PutUint32(rec[8:12], m.Tick)
}

func (k KeySample) encodeTo(rec []byte) {
	rec[0] = k.Scan
	rec[1], rec[2], rec[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(rec[4:8], k.Tick)
	var up uint32
	if k.Up {
		up = 1
	}
	binary.LittleEndian.PutUint32(rec[8:12], up)
}
