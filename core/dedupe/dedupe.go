// Package dedupe provides packet deduplication for the swarm radio layer.
//
// It is a defense-in-depth guard sitting behind the flood and neighbor
// managers, which already have their own improvement-gated forwarding
// rules. It tracks recently seen packets using a circular buffer of
// truncated hashes, so a retransmitted or looped packet that slips past
// those rules is still dropped before it reaches the dispatcher.
package dedupe

import (
	"crypto/sha256"

	"github.com/skyflock/swarmcore/core/codec"
)

const (
	// DefaultMaxHashes is the default capacity of the hash table.
	DefaultMaxHashes = 128
	// HashSize is the truncated SHA256 hash size used for deduplication.
	HashSize = 8
)

// Deduplicator tracks recently seen packets to prevent processing duplicates.
type Deduplicator struct {
	hashes   []byte // circular buffer of HashSize-byte hashes
	max      int
	next     int
}

// New creates a Deduplicator with the default buffer size.
func New() *Deduplicator {
	return NewWithCapacity(DefaultMaxHashes)
}

// NewWithCapacity creates a Deduplicator with the given buffer size.
func NewWithCapacity(max int) *Deduplicator {
	return &Deduplicator{
		hashes: make([]byte, max*HashSize),
		max:    max,
	}
}

// HasSeen reports whether an equivalent packet has already been recorded.
// If not, it records the packet and returns false.
func (d *Deduplicator) HasSeen(pkt *codec.Packet) bool {
	hash := Hash(pkt)

	for i := 0; i < d.max; i++ {
		offset := i * HashSize
		if sliceEqual(hash[:], d.hashes[offset:offset+HashSize]) {
			return true
		}
	}

	offset := d.next * HashSize
	copy(d.hashes[offset:offset+HashSize], hash[:])
	d.next = (d.next + 1) % d.max
	return false
}

// Clear resets the deduplicator, forgetting all previously seen packets.
func (d *Deduplicator) Clear() {
	clear(d.hashes)
	d.next = 0
}

// Hash computes the deduplication key for a packet: a truncated SHA256 of
// its source, category, and payload bytes.
func Hash(pkt *codec.Packet) [HashSize]byte {
	h := sha256.New()
	h.Write([]byte{byte(pkt.Src), byte(pkt.Category)})
	h.Write(pkt.Payload)
	sum := h.Sum(nil)
	var result [HashSize]byte
	copy(result[:], sum[:HashSize])
	return result
}

func sliceEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
