package peers

import "testing"

func TestParseSeed_Valid(t *testing.T) {
	seed, err := ParseSeed("deadbeef::/ip4/127.0.0.1/tcp/9000")
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(seed.PublicKey) != 4 {
		t.Fatalf("PublicKey length = %d, want 4", len(seed.PublicKey))
	}
	if seed.Address.String() != "/ip4/127.0.0.1/tcp/9000" {
		t.Fatalf("Address = %q", seed.Address.String())
	}
	if seed.Features != 0 {
		t.Fatalf("Features = %d, want 0", seed.Features)
	}
}

func TestParseSeed_MalformedCases(t *testing.T) {
	cases := []string{
		"missing-separator",
		"zzzz::/ip4/127.0.0.1/tcp/9000", // invalid hex
		"::/ip4/127.0.0.1/tcp/9000",     // empty key
		"deadbeef::not-a-multiaddr",
	}
	for _, c := range cases {
		if _, err := ParseSeed(c); err == nil {
			t.Fatalf("ParseSeed(%q) = nil error, want error", c)
		}
	}
}

func TestParseSeeds_SkipsMalformedEntries(t *testing.T) {
	raw := []string{
		"deadbeef::/ip4/127.0.0.1/tcp/9000",
		"not-a-valid-seed",
		"cafebabe::/ip4/10.0.0.1/tcp/9001",
	}
	seeds := ParseSeeds(raw)
	if len(seeds) != 2 {
		t.Fatalf("ParseSeeds returned %d seeds, want 2", len(seeds))
	}
}
