package process

import "testing"

func TestAOBMatchAt(t *testing.T) {
	aob, err := NewAOB([]byte{0x55, 0x00, 0xEC}, []byte{0xFF, 0x00, 0xFF})
	if err != nil {
		t.Fatalf("NewAOB: %v", err)
	}
	data := []byte{0x90, 0x55, 0x8B, 0xEC, 0x55, 0x12, 0xED}

	tests := []struct {
		at   int
		want bool
	}{
		{0, false},
		{1, true},
		{4, false},
	}
	for _, tt := range tests {
		if got := aob.MatchAt(data, tt.at); got != tt.want {
			t.Errorf("MatchAt(%d) = %v, want %v", tt.at, got, tt.want)
		}
	}
	if aob.Wildcards() != 1 {
		t.Fatalf("Wildcards = %d", aob.Wildcards())
	}
}

func TestNewAOBRejectsBadShape(t *testing.T) {
	if _, err := NewAOB(nil, nil); err == nil {
		t.Fatal("empty pattern accepted")
	}
	if _, err := NewAOB([]byte{1, 2}, []byte{0xFF}); err == nil {
		t.Fatal("mask length mismatch accepted")
	}
}

func TestAddressOffset(t *testing.T) {
	base := ProcessMemoryAddress(0x1000)
	if got := base.Offset(-0x10); got != 0xFF0 {
		t.Fatalf("Offset(-0x10) = %s", got.ToString())
	}
	if got := base.Offset(4); got != 0x1004 {
		t.Fatalf("Offset(4) = %s", got.ToString())
	}
}
