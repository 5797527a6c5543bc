package codec

import "errors"

// FLOOD message discriminants (the leading byte of a CategoryFlood
// payload), per the external wire format contract.
const (
	FloodMsgStart     uint8 = 0
	FloodMsgDiscovery uint8 = 1
	FloodMsgReport    uint8 = 2
)

var (
	ErrInvalidFloodPayload = errors.New("codec: invalid flood payload")
)

// FloodStart carries a flood_id chosen by the base station, directing the
// initiator to begin a new flood.
type FloodStart struct {
	FloodID uint16
}

// DecodeFloodStart decodes a FLOOD/START payload.
func DecodeFloodStart(payload []byte) (FloodStart, error) {
	if len(payload) < 3 || payload[0] != FloodMsgStart {
		return FloodStart{}, ErrInvalidFloodPayload
	}
	return FloodStart{FloodID: getU16(payload[1:3])}, nil
}

// Encode serializes a FLOOD/START payload.
func (m FloodStart) Encode() []byte {
	out := make([]byte, 3)
	out[0] = FloodMsgStart
	putU16(out[1:3], m.FloodID)
	return out
}

// FloodDiscovery propagates the minimum-hop computation outward from the
// initiator.
type FloodDiscovery struct {
	FloodID     uint16
	InitiatorID uint8
	HopToBase   uint8
}

// DecodeFloodDiscovery decodes a FLOOD/DISCOVERY payload.
func DecodeFloodDiscovery(payload []byte) (FloodDiscovery, error) {
	if len(payload) < 5 || payload[0] != FloodMsgDiscovery {
		return FloodDiscovery{}, ErrInvalidFloodPayload
	}
	return FloodDiscovery{
		FloodID:     getU16(payload[1:3]),
		InitiatorID: payload[3],
		HopToBase:   payload[4],
	}, nil
}

// Encode serializes a FLOOD/DISCOVERY payload.
func (m FloodDiscovery) Encode() []byte {
	out := make([]byte, 5)
	out[0] = FloodMsgDiscovery
	putU16(out[1:3], m.FloodID)
	out[3] = m.InitiatorID
	out[4] = m.HopToBase
	return out
}

// FloodReport carries one reporter's best-known hop count back toward the
// initiator, forwarded by intermediate nodes at most once per improvement.
type FloodReport struct {
	FloodID     uint16
	InitiatorID uint8
	ReporterID  uint8
	HopToBase   uint8
}

// DecodeFloodReport decodes a FLOOD/REPORT payload.
func DecodeFloodReport(payload []byte) (FloodReport, error) {
	if len(payload) < 6 || payload[0] != FloodMsgReport {
		return FloodReport{}, ErrInvalidFloodPayload
	}
	return FloodReport{
		FloodID:     getU16(payload[1:3]),
		InitiatorID: payload[3],
		ReporterID:  payload[4],
		HopToBase:   payload[5],
	}, nil
}

// Encode serializes a FLOOD/REPORT payload.
func (m FloodReport) Encode() []byte {
	out := make([]byte, 6)
	out[0] = FloodMsgReport
	putU16(out[1:3], m.FloodID)
	out[3] = m.InitiatorID
	out[4] = m.ReporterID
	out[5] = m.HopToBase
	return out
}
