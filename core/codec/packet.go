// Package codec implements the wire formats used by the swarm core:
// the packet envelope, the FLOOD and CORE message bodies, and the
// NEIGHBOR broadcast payload. All multi-byte integers are little-endian
// and every message is tightly packed, per the external interface
// contract. The envelope carries no route-type bits, variable-length
// path, or transport codes — flood and relay state live in the flood
// manager and drone agent, not in the envelope itself.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/skyflock/swarmcore/core"
)

// Category identifies which subsystem a packet's payload belongs to.
type Category uint8

const (
	CategoryCore     Category = 0
	CategoryFlood    Category = 1
	CategoryNeighbor Category = 2
)

func (c Category) String() string {
	switch c {
	case CategoryCore:
		return "CORE"
	case CategoryFlood:
		return "FLOOD"
	case CategoryNeighbor:
		return "NEIGHBOR"
	default:
		return "UNKNOWN"
	}
}

// EnvelopeSize is the fixed size of the packet envelope header, excluding
// the payload: src(1) + dst(1) + category(1).
const EnvelopeSize = 3

var (
	// ErrPacketTooShort is returned when raw bytes are shorter than the
	// minimum valid envelope.
	ErrPacketTooShort = errors.New("codec: packet too short")
	// ErrUnknownCategory is returned when the category byte does not match
	// a known Category value.
	ErrUnknownCategory = errors.New("codec: unknown packet category")
)

// Packet is the structured form of a datagram exchanged over the
// transport: an envelope (src, dst, category) plus a typed payload whose
// leading byte is a discriminant within the category.
type Packet struct {
	Src      core.NodeID
	Dst      core.NodeID
	Category Category
	Payload  []byte
}

// IsBroadcast reports whether the packet's destination is the broadcast
// address.
func (p *Packet) IsBroadcast() bool {
	return p.Dst.IsBroadcast()
}

// AddressedTo reports whether the packet should be processed by self: it
// is either a broadcast, or unicast addressed directly to self.
func (p *Packet) AddressedTo(self core.NodeID) bool {
	return p.Dst == self || p.IsBroadcast()
}

// ReadFrom decodes a Packet from its wire representation.
func (p *Packet) ReadFrom(data []byte) error {
	if len(data) < EnvelopeSize {
		return ErrPacketTooShort
	}
	cat := Category(data[2])
	switch cat {
	case CategoryCore, CategoryFlood, CategoryNeighbor:
	default:
		return ErrUnknownCategory
	}
	p.Src = core.NodeID(data[0])
	p.Dst = core.NodeID(data[1])
	p.Category = cat
	p.Payload = append([]byte(nil), data[EnvelopeSize:]...)
	return nil
}

// WriteTo encodes the Packet to its wire representation.
func (p *Packet) WriteTo() []byte {
	out := make([]byte, EnvelopeSize+len(p.Payload))
	out[0] = uint8(p.Src)
	out[1] = uint8(p.Dst)
	out[2] = uint8(p.Category)
	copy(out[EnvelopeSize:], p.Payload)
	return out
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	clone := &Packet{Src: p.Src, Dst: p.Dst, Category: p.Category}
	if len(p.Payload) > 0 {
		clone.Payload = append([]byte(nil), p.Payload...)
	}
	return clone
}

// little-endian helpers shared by the FLOOD and CORE codecs.

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func getU16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
