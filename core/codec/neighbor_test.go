package codec

import "testing"

func TestNeighborEntryRoundTrip(t *testing.T) {
	m := NeighborEntryWire{ID: 3, HopsToBase: 2, X: 1, Y: 2, Z: 3}
	got, err := DecodeNeighborEntry(m.Encode(), 3)
	if err != nil {
		t.Fatalf("DecodeNeighborEntry() error = %v", err)
	}
	if got != m {
		t.Errorf("DecodeNeighborEntry() = %+v, want %+v", got, m)
	}
}

func TestNeighborEntryRejectsMismatchedSrc(t *testing.T) {
	m := NeighborEntryWire{ID: 3, HopsToBase: 2}
	if _, err := DecodeNeighborEntry(m.Encode(), 4); err != ErrInvalidNeighborPayload {
		t.Errorf("DecodeNeighborEntry() error = %v, want ErrInvalidNeighborPayload", err)
	}
}

func TestNeighborEntryRejectsShortPayload(t *testing.T) {
	if _, err := DecodeNeighborEntry([]byte{1, 2, 3}, 1); err != ErrInvalidNeighborPayload {
		t.Errorf("DecodeNeighborEntry() error = %v, want ErrInvalidNeighborPayload", err)
	}
}
