package pose

import (
	"encoding/binary"
	"fmt"
	"math"
)

// LayoutState tracks whether a decoder has seen its source's packet
// layout yet. Tracking vendors pad the fixed record with different
// amounts of trailing telemetry, so the total length is learned from
// the first packet rather than configured.
type LayoutState int

const (
	// LayoutUnknown means no packet has been decoded yet.
	LayoutUnknown LayoutState = iota
	// LayoutDetected means the expected total length has been recorded.
	LayoutDetected
)

// unexpectedLengthLogEvery rate-limits warnings about packets whose
// length differs from the detected layout. Such packets are still
// decoded from their first 28 bytes, never dropped.
const unexpectedLengthLogEvery = 100

// Decoder decodes pose frames from one packet source. It remembers the
// layout detected from the first packet and rate-limits warnings about
// later packets of a different length. A Decoder is not safe for
// concurrent use; each listener owns its own.
type Decoder struct {
	source string // identifies the source in log output

	layout         LayoutState
	detectedLength int
	unexpectedSeen int
}

// NewDecoder creates a decoder for the named source (typically the
// robot id the packets belong to).
func NewDecoder(source string) *Decoder {
	return &Decoder{source: source}
}

// Layout reports the decoder's layout-detection state and the total
// packet length recorded from the first packet.
func (d *Decoder) Layout() (LayoutState, int) {
	return d.layout, d.detectedLength
}

// Decode parses the fixed 28-byte pose record at the start of data.
// Trailing bytes beyond the record are ignored. Returns
// ErrMalformedPacket if data is shorter than the record.
func (d *Decoder) Decode(data []byte) (Frame, error) {
	if len(data) < FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedPacket, len(data), FrameSize)
	}

	switch d.layout {
	case LayoutUnknown:
		d.layout = LayoutDetected
		d.detectedLength = len(data)
		Logf("[pose: %s] detected packet layout: %d bytes total (%d-byte pose record + %d trailing)",
			d.source, len(data), FrameSize, len(data)-FrameSize)
	case LayoutDetected:
		if len(data) != d.detectedLength {
			if d.unexpectedSeen%unexpectedLengthLogEvery == 0 {
				Logf("[pose: %s] packet length %d differs from detected %d (seen %d times); decoding first %d bytes",
					d.source, len(data), d.detectedLength, d.unexpectedSeen+1, FrameSize)
			}
			d.unexpectedSeen++
		}
	}

	var vals [PositionFloats + QuaternionFloats]float64
	for i := range vals {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		vals[i] = float64(math.Float32frombits(bits))
	}

	return Frame{
		X:  vals[0],
		Y:  vals[1],
		Z:  vals[2],
		QX: vals[3],
		QY: vals[4],
		QZ: vals[5],
		QW: vals[6],
	}, nil
}
