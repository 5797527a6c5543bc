// Package transport defines the byte-level radio contract the core
// communication manager is built against. The radio itself — range-based
// loss, scheduling, simulated or real RF — is an external collaborator;
// the core only ever sees this interface.
package transport

// Transport is a best-effort, range-limited unicast/broadcast byte
// channel with an asynchronous receive callback.
type Transport interface {
	// SendUnicast delivers bytes to peer id, best-effort, if in range.
	SendUnicast(dst uint8, bytes []byte)
	// SendBroadcast fans bytes out to all in-range peers except self.
	SendBroadcast(bytes []byte)
	// SetRxCallback installs the handler invoked once per received
	// datagram. Replaces any previously installed handler.
	SetRxCallback(cb RxCallback)
	// RegisterPeer records an advisory address mapping for id. The
	// transport may ignore this if it resolves addresses another way.
	RegisterPeer(id uint8, address uint32)
}

// RxCallback is invoked once per received datagram.
type RxCallback func(bytes []byte)
