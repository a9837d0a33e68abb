package domain

import "testing"

func mustSpace(t *testing.T, bits, succ int) Space {
	t.Helper()
	sp, err := NewSpace(bits, succ)
	if err != nil {
		t.Fatalf("NewSpace failed: %v", err)
	}
	return sp
}

func TestBetweenLinear(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	a, _ := sp.FromHexString("0x10")
	b, _ := sp.FromHexString("0x20")

	cases := []struct {
		hex  string
		want bool
	}{
		{"0x10", false}, // == a, excluded
		{"0x11", true},
		{"0x20", true}, // == b, included
		{"0x21", false},
		{"0x05", false},
	}
	for _, c := range cases {
		x, err := sp.FromHexString(c.hex)
		if err != nil {
			t.Fatalf("FromHexString(%s): %v", c.hex, err)
		}
		if got := x.Between(a, b); got != c.want {
			t.Errorf("Between(%s, a=0x10, b=0x20) = %v, want %v", c.hex, got, c.want)
		}
	}
}

func TestBetweenWrapAround(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	a, _ := sp.FromHexString("0xf0")
	b, _ := sp.FromHexString("0x10")

	cases := []struct {
		hex  string
		want bool
	}{
		{"0xf5", true},  // above a
		{"0x05", true},  // below b
		{"0x10", true},  // == b
		{"0xf0", false}, // == a
		{"0x50", false}, // strictly inside the excluded middle
	}
	for _, c := range cases {
		x, _ := sp.FromHexString(c.hex)
		if got := x.Between(a, b); got != c.want {
			t.Errorf("Between(%s, a=0xf0, b=0x10) = %v, want %v", c.hex, got, c.want)
		}
	}
}

func TestBetweenFullRingWhenEndpointsEqual(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	a, _ := sp.FromHexString("0x42")
	for _, hex := range []string{"0x00", "0x42", "0xff", "0x01"} {
		x, _ := sp.FromHexString(hex)
		if !x.Between(a, a) {
			t.Errorf("Between(%s, a, a) = false, want true (a==b covers full ring)", hex)
		}
	}
}

func TestAddModWraps(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	a, _ := sp.FromHexString("0xff")
	one := sp.FromUint64(1)
	sum, err := sp.AddMod(a, one)
	if err != nil {
		t.Fatalf("AddMod failed: %v", err)
	}
	if sum.ToHexString(false) != "00" {
		t.Errorf("AddMod(0xff, 1) = %s, want 00 (mod 2^8)", sum.ToHexString(false))
	}
}

func TestSubModWraps(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	zero := sp.Zero()
	one := sp.FromUint64(1)
	diff, err := sp.SubMod(zero, one)
	if err != nil {
		t.Fatalf("SubMod failed: %v", err)
	}
	if diff.ToHexString(false) != "ff" {
		t.Errorf("SubMod(0, 1) = %s, want ff (mod 2^8)", diff.ToHexString(false))
	}
}

func TestPowTwoMod(t *testing.T) {
	sp := mustSpace(t, 8, 3)
	if got := sp.PowTwoMod(0).ToHexString(false); got != "01" {
		t.Errorf("PowTwoMod(0) = %s, want 01", got)
	}
	if got := sp.PowTwoMod(7).ToHexString(false); got != "80" {
		t.Errorf("PowTwoMod(7) = %s, want 80", got)
	}
	// 2^8 mod 2^8 == 0
	if got := sp.PowTwoMod(8).ToHexString(false); got != "00" {
		t.Errorf("PowTwoMod(8) = %s, want 00", got)
	}
}

func TestNewIDFromStringDeterministic(t *testing.T) {
	sp := mustSpace(t, 160, 8)
	id1 := sp.NewIDFromString("127.0.0.1:7001")
	id2 := sp.NewIDFromString("127.0.0.1:7001")
	if !id1.Equal(id2) {
		t.Errorf("NewIDFromString not deterministic: %s != %s", id1, id2)
	}
	if len(id1) != sp.ByteLen {
		t.Errorf("NewIDFromString: got %d bytes, want %d", len(id1), sp.ByteLen)
	}
}

func TestFromHexStringRejectsOutOfRange(t *testing.T) {
	sp := mustSpace(t, 4, 3) // 4-bit space, ByteLen=1, valid range [0x0, 0xf]
	if _, err := sp.FromHexString("0x10"); err == nil {
		t.Error("FromHexString(0x10) in a 4-bit space should fail, got nil error")
	}
	if _, err := sp.FromHexString("0x0f"); err != nil {
		t.Errorf("FromHexString(0x0f) in a 4-bit space should succeed, got %v", err)
	}
}
