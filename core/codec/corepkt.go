package codec

import (
	"encoding/binary"
	"errors"
	"math"
)

// CORE message discriminants, per the external wire format contract.
// Values start at 0x80 so they're visually distinct from FLOOD/NEIGHBOR
// discriminants when captured off the wire.
const (
	CoreMsgPosUpdate  uint8 = 0x80
	CoreMsgPosAck     uint8 = 0x81
	CoreMsgHelpProxy  uint8 = 0x82
)

var ErrInvalidCorePayload = errors.New("codec: invalid core payload")

// PosUpdate is a drone's periodic position report.
type PosUpdate struct {
	DroneID uint8
	BaseID  uint8
	Seq     uint16
	X, Y, Z float32
}

const posUpdateSize = 1 + 1 + 1 + 2 + 4 + 4 + 4 // discriminant + drone + base + seq + xyz

// DecodePosUpdate decodes a CORE/POS_UPDATE payload.
func DecodePosUpdate(payload []byte) (PosUpdate, error) {
	if len(payload) < posUpdateSize || payload[0] != CoreMsgPosUpdate {
		return PosUpdate{}, ErrInvalidCorePayload
	}
	return PosUpdate{
		DroneID: payload[1],
		BaseID:  payload[2],
		Seq:     getU16(payload[3:5]),
		X:       getF32(payload[5:9]),
		Y:       getF32(payload[9:13]),
		Z:       getF32(payload[13:17]),
	}, nil
}

// Encode serializes a CORE/POS_UPDATE payload.
func (m PosUpdate) Encode() []byte {
	out := make([]byte, posUpdateSize)
	out[0] = CoreMsgPosUpdate
	out[1] = m.DroneID
	out[2] = m.BaseID
	putU16(out[3:5], m.Seq)
	putF32(out[5:9], m.X)
	putF32(out[9:13], m.Y)
	putF32(out[13:17], m.Z)
	return out
}

// PosAck is the base station's acknowledgement of a PosUpdate, carrying
// the base's own position so the drone can treat it as a NEIGHBOR entry.
type PosAck struct {
	BaseID    uint8
	DroneID   uint8
	Seq       uint16
	BaseHops  uint8 // always 0: the base is its own zero-hop reference point
	X, Y, Z   float64
}

const posAckSize = 1 + 1 + 1 + 2 + 1 + 8 + 8 + 8

// DecodePosAck decodes a CORE/POS_ACK payload.
func DecodePosAck(payload []byte) (PosAck, error) {
	if len(payload) < posAckSize || payload[0] != CoreMsgPosAck {
		return PosAck{}, ErrInvalidCorePayload
	}
	return PosAck{
		BaseID:   payload[1],
		DroneID:  payload[2],
		Seq:      getU16(payload[3:5]),
		BaseHops: payload[5],
		X:        getF64(payload[6:14]),
		Y:        getF64(payload[14:22]),
		Z:        getF64(payload[22:30]),
	}, nil
}

// Encode serializes a CORE/POS_ACK payload.
func (m PosAck) Encode() []byte {
	out := make([]byte, posAckSize)
	out[0] = CoreMsgPosAck
	out[1] = m.BaseID
	out[2] = m.DroneID
	putU16(out[3:5], m.Seq)
	out[5] = m.BaseHops
	putF64(out[6:14], m.X)
	putF64(out[14:22], m.Y)
	putF64(out[22:30], m.Z)
	return out
}

// HelpProxy is a drone's distress broadcast issued after its ack from the
// base has timed out — an implicit request for peers to relay.
type HelpProxy struct {
	RequesterID uint8
	BaseID      uint8
}

const helpProxySize = 3

// DecodeHelpProxy decodes a CORE/HELP_PROXY payload.
func DecodeHelpProxy(payload []byte) (HelpProxy, error) {
	if len(payload) < helpProxySize || payload[0] != CoreMsgHelpProxy {
		return HelpProxy{}, ErrInvalidCorePayload
	}
	return HelpProxy{RequesterID: payload[1], BaseID: payload[2]}, nil
}

// Encode serializes a CORE/HELP_PROXY payload.
func (m HelpProxy) Encode() []byte {
	return []byte{CoreMsgHelpProxy, m.RequesterID, m.BaseID}
}

func putF32(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }
func getF32(b []byte) float32    { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
func putF64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) }
func getF64(b []byte) float64    { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
