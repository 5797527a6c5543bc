package codec

import "errors"

var ErrInvalidNeighborPayload = errors.New("codec: invalid neighbor payload")

// NeighborEntryWire is the wire-format body of a CategoryNeighbor packet:
// id(1) + hops_to_base(1) + x,y,z as IEEE-754 doubles.
type NeighborEntryWire struct {
	ID          uint8
	HopsToBase  uint8
	X, Y, Z     float64
}

const neighborEntrySize = 1 + 1 + 8 + 8 + 8

// DecodeNeighborEntry decodes a NEIGHBOR payload. src is the packet's
// envelope source, which must match the payload's embedded id per the
// wire contract.
func DecodeNeighborEntry(payload []byte, src uint8) (NeighborEntryWire, error) {
	if len(payload) < neighborEntrySize {
		return NeighborEntryWire{}, ErrInvalidNeighborPayload
	}
	if payload[0] != src {
		return NeighborEntryWire{}, ErrInvalidNeighborPayload
	}
	return NeighborEntryWire{
		ID:         payload[0],
		HopsToBase: payload[1],
		X:          getF64(payload[2:10]),
		Y:          getF64(payload[10:18]),
		Z:          getF64(payload[18:26]),
	}, nil
}

// Encode serializes a NEIGHBOR payload.
func (m NeighborEntryWire) Encode() []byte {
	out := make([]byte, neighborEntrySize)
	out[0] = m.ID
	out[1] = m.HopsToBase
	putF64(out[2:10], m.X)
	putF64(out[10:18], m.Y)
	putF64(out[18:26], m.Z)
	return out
}
