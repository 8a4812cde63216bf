package account

import "testing"

func TestParseAddressNormalizes(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"lowercase no prefix", "1111111111111111111111111111111111111111", false},
		{"uppercase with 0x prefix", "0x" + "ABCDEF0123456789ABCDEF0123456789ABCDEF01", false},
		{"too short", "1234", true},
		{"invalid hex", "zz23456789012345678901234567890123456789", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := ParseAddress(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error parsing %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tc.raw, err)
			}
			if addr.String() != string(addr) {
				t.Fatalf("String() mismatch")
			}
		})
	}
}

func TestAddressEqualIsCaseInsensitive(t *testing.T) {
	a := MustAddress("ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	b := MustAddress("abcdef0123456789abcdef0123456789abcdef01")
	if !a.Equal(b) {
		t.Fatal("expected addresses differing only in case to be equal")
	}
}

func TestZeroAddress(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Fatal("expected ZeroAddress.IsZero() to be true")
	}
	other := MustAddress("1111111111111111111111111111111111111111")
	if other.IsZero() {
		t.Fatal("expected a non-zero address to report IsZero() false")
	}
}

func TestIsNodeMarker(t *testing.T) {
	if !IsNodeMarker("node") || !IsNodeMarker("NODE") || !IsNodeMarker("  Node  ") {
		t.Fatal("expected IsNodeMarker to match the node marker case-insensitively and trim whitespace")
	}
	if IsNodeMarker(string(ZeroAddress)) {
		t.Fatal("expected an address to not be mistaken for the node marker")
	}
}
