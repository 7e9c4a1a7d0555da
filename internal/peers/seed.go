// Package peers parses peer seed strings supplied at node startup.
package peers

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/andes-chain/basenode/internal/log"
	"github.com/multiformats/go-multiaddr"
)

// Seed is a peer known before any handshake: its advertised public key and
// network address. Parsed seeds always carry default flags and empty
// features — anything beyond identity and address is learned later, from
// the peer itself.
type Seed struct {
	PublicKey []byte
	Address   multiaddr.Multiaddr
	Features  uint64
}

// seedSeparator divides the public key from the multiaddr in a seed string.
const seedSeparator = "::"

// ParseSeed parses a single "<public_key_hex>::<multiaddr>" seed entry.
func ParseSeed(s string) (Seed, error) {
	parts := strings.SplitN(s, seedSeparator, 2)
	if len(parts) != 2 {
		return Seed{}, fmt.Errorf("seed %q: expected \"<pubkey_hex>%s<multiaddr>\"", s, seedSeparator)
	}

	pubKey, err := hex.DecodeString(parts[0])
	if err != nil {
		return Seed{}, fmt.Errorf("seed %q: decode public key: %w", s, err)
	}
	if len(pubKey) == 0 {
		return Seed{}, fmt.Errorf("seed %q: empty public key", s)
	}

	addr, err := multiaddr.NewMultiaddr(parts[1])
	if err != nil {
		return Seed{}, fmt.Errorf("seed %q: parse multiaddr: %w", s, err)
	}

	return Seed{PublicKey: pubKey, Address: addr}, nil
}

// ParseSeeds parses every entry in raw, warning and skipping malformed
// entries rather than failing the whole batch — one bad seed in a config
// file should not keep the node from connecting to the rest.
func ParseSeeds(raw []string) []Seed {
	logger := log.WithComponent("peers")
	seeds := make([]Seed, 0, len(raw))
	for _, s := range raw {
		seed, err := ParseSeed(s)
		if err != nil {
			logger.Warn().Str("seed", s).Err(err).Msg("skipping malformed seed")
			continue
		}
		seeds = append(seeds, seed)
	}
	return seeds
}
