package comm

import (
	"testing"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/codec"
	"github.com/skyflock/swarmcore/transport"
)

type fakeTransport struct {
	rx               func([]byte)
	unicastCalls     []struct {
		dst   uint8
		bytes []byte
	}
	broadcastCalls [][]byte
	registered     map[uint8]uint32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{registered: make(map[uint8]uint32)}
}

func (f *fakeTransport) SendUnicast(dst uint8, bytes []byte) {
	f.unicastCalls = append(f.unicastCalls, struct {
		dst   uint8
		bytes []byte
	}{dst, bytes})
}
func (f *fakeTransport) SendBroadcast(bytes []byte) {
	f.broadcastCalls = append(f.broadcastCalls, bytes)
}
func (f *fakeTransport) SetRxCallback(cb transport.RxCallback) { f.rx = cb }
func (f *fakeTransport) RegisterPeer(id uint8, address uint32) {
	f.registered[id] = address
}

func TestSendUnicastFramesEnvelope(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	m.SendUnicast(7, codec.CategoryFlood, []byte{0xAA})

	if len(ft.unicastCalls) != 1 {
		t.Fatalf("got %d unicast calls, want 1", len(ft.unicastCalls))
	}
	call := ft.unicastCalls[0]
	if call.dst != 7 {
		t.Errorf("dst = %d, want 7", call.dst)
	}
	var pkt codec.Packet
	if err := pkt.ReadFrom(call.bytes); err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if pkt.Src != 3 || pkt.Dst != 7 || pkt.Category != codec.CategoryFlood {
		t.Errorf("unexpected envelope %+v", pkt)
	}
}

func TestSendBroadcastUsesBroadcastDst(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	m.SendBroadcast(codec.CategoryNeighbor, []byte{1, 2})

	if len(ft.broadcastCalls) != 1 {
		t.Fatalf("got %d broadcast calls, want 1", len(ft.broadcastCalls))
	}
	var pkt codec.Packet
	pkt.ReadFrom(ft.broadcastCalls[0])
	if pkt.Dst != core.BroadcastID {
		t.Errorf("dst = %v, want broadcast", pkt.Dst)
	}
}

func TestOnReceiveDispatchesByCategory(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	var gotFlood, gotNeighbor, gotCore *codec.Packet
	m.SetFloodHandler(func(p *codec.Packet) { gotFlood = p })
	m.SetNeighborHandler(func(p *codec.Packet) { gotNeighbor = p })
	m.SetCoreHandler(func(p *codec.Packet) { gotCore = p })

	floodPkt := (&codec.Packet{Src: 1, Dst: core.BroadcastID, Category: codec.CategoryFlood, Payload: []byte{0}}).WriteTo()
	neighborPkt := (&codec.Packet{Src: 1, Dst: core.BroadcastID, Category: codec.CategoryNeighbor, Payload: []byte{0}}).WriteTo()
	corePkt := (&codec.Packet{Src: 1, Dst: 3, Category: codec.CategoryCore, Payload: []byte{0}}).WriteTo()

	ft.rx(floodPkt)
	ft.rx(neighborPkt)
	ft.rx(corePkt)

	if gotFlood == nil || gotNeighbor == nil || gotCore == nil {
		t.Fatal("not all handlers were invoked")
	}
}

func TestOnReceiveDropsPacketNotAddressedToSelf(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	called := false
	m.SetCoreHandler(func(p *codec.Packet) { called = true })

	pkt := (&codec.Packet{Src: 1, Dst: 9, Category: codec.CategoryCore, Payload: []byte{0}}).WriteTo()
	ft.rx(pkt)

	if called {
		t.Error("handler invoked for packet not addressed to self and not broadcast")
	}
}

func TestOnReceiveDropsDuplicates(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	count := 0
	m.SetFloodHandler(func(p *codec.Packet) { count++ })

	pkt := (&codec.Packet{Src: 1, Dst: core.BroadcastID, Category: codec.CategoryFlood, Payload: []byte{7}}).WriteTo()
	ft.rx(pkt)
	ft.rx(pkt)

	if count != 1 {
		t.Errorf("handler invoked %d times for duplicate packet, want 1", count)
	}
}

func TestOnReceiveDropsMalformedPacket(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	called := false
	m.SetFloodHandler(func(p *codec.Packet) { called = true })

	ft.rx([]byte{1, 2}) // too short

	if called {
		t.Error("handler invoked for malformed packet")
	}
}

func TestRegisterPeerForwardsToTransport(t *testing.T) {
	ft := newFakeTransport()
	m := New(Config{SelfID: 3, Transport: ft})

	m.RegisterPeer(5, 0xC0A80001)
	if ft.registered[5] != 0xC0A80001 {
		t.Errorf("RegisterPeer not forwarded: %+v", ft.registered)
	}
}
