package core

import "testing"

func TestNodeIDIsBroadcast(t *testing.T) {
	if !BroadcastID.IsBroadcast() {
		t.Error("BroadcastID.IsBroadcast() = false, want true")
	}
	if NodeID(3).IsBroadcast() {
		t.Error("NodeID(3).IsBroadcast() = true, want false")
	}
}

func TestNodeIDIsBase(t *testing.T) {
	if !BaseID.IsBase() {
		t.Error("BaseID.IsBase() = false, want true")
	}
	if NodeID(1).IsBase() {
		t.Error("NodeID(1).IsBase() = true, want false")
	}
}

func TestNodeIDString(t *testing.T) {
	tests := []struct {
		id   NodeID
		want string
	}{
		{BaseID, "base"},
		{BroadcastID, "broadcast"},
		{NodeID(7), "node-7"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("NodeID(%d).String() = %s, want %s", uint8(tt.id), got, tt.want)
		}
	}
}
