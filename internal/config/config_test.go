package config

import "testing"

func TestFromEnvOverlaysSetVariables(t *testing.T) {
	t.Setenv("PORT", "5050")
	t.Setenv("PRIVATE_KEY", "deadbeef")
	t.Setenv("ICE_SERVERS", "stun:a.example:3478, stun:b.example:3478 ,")

	c := FromEnv(Default())

	if c.ListenAddr != ":5050" {
		t.Fatalf("expected ListenAddr :5050, got %q", c.ListenAddr)
	}
	if c.PrivateKeyHex != "deadbeef" {
		t.Fatalf("expected PrivateKeyHex to be overlaid, got %q", c.PrivateKeyHex)
	}
	want := []string{"stun:a.example:3478", "stun:b.example:3478"}
	if len(c.ICEServers) != len(want) {
		t.Fatalf("expected %v, got %v", want, c.ICEServers)
	}
	for i := range want {
		if c.ICEServers[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, c.ICEServers)
		}
	}
}

func TestFromEnvLeavesDefaultsWhenUnset(t *testing.T) {
	c := FromEnv(Default())
	if c.ListenAddr != ":4000" {
		t.Fatalf("expected the default listen address to survive an empty environment, got %q", c.ListenAddr)
	}
	if c.PrivateKeyHex != "" {
		t.Fatalf("expected no private key by default, got %q", c.PrivateKeyHex)
	}
}

func TestParsePort(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid port", "8080", false},
		{"zero", "0", false},
		{"max", "65535", false},
		{"out of range", "70000", true},
		{"negative", "-1", true},
		{"not a number", "abc", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePort(tc.raw)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error for %q", tc.raw)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("ParsePort(%q): %v", tc.raw, err)
			}
		})
	}
}
