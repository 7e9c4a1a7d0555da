// Package identity manages the node's persistent cryptographic identity:
// its signing key, derived node ID, and advertised network address.
package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
	"github.com/multiformats/go-multiaddr"
)

// Identity is the node's persisted key material and network address.
type Identity struct {
	PrivateKey    *crypto.PrivateKey
	PublicKey     []byte // compressed secp256k1 public key, 33 bytes
	NodeID        types.Address
	Features      uint64
	PublicAddress multiaddr.Multiaddr // nil if unset
}

type identityJSON struct {
	PrivateKey    string `json:"private_key"`
	PublicKey     string `json:"public_key"`
	NodeID        string `json:"node_id"`
	Features      uint64 `json:"features"`
	PublicAddress string `json:"public_address"`
}

// MarshalJSON encodes the identity record with hex-encoded key material and
// node ID, and the public address in its standard multiaddr string form.
func (id *Identity) MarshalJSON() ([]byte, error) {
	j := identityJSON{
		PrivateKey: hex.EncodeToString(id.PrivateKey.Serialize()),
		PublicKey:  hex.EncodeToString(id.PublicKey),
		NodeID:     hex.EncodeToString(id.NodeID[:]),
		Features:   id.Features,
	}
	if id.PublicAddress != nil {
		j.PublicAddress = id.PublicAddress.String()
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an identity record produced by MarshalJSON.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var j identityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	privBytes, err := hex.DecodeString(j.PrivateKey)
	if err != nil {
		return fmt.Errorf("decode private_key: %w", err)
	}
	priv, err := crypto.PrivateKeyFromBytes(privBytes)
	if err != nil {
		return fmt.Errorf("parse private_key: %w", err)
	}

	pub, err := hex.DecodeString(j.PublicKey)
	if err != nil {
		return fmt.Errorf("decode public_key: %w", err)
	}

	nodeID, err := hex.DecodeString(j.NodeID)
	if err != nil {
		return fmt.Errorf("decode node_id: %w", err)
	}
	if len(nodeID) != types.AddressSize {
		return fmt.Errorf("node_id must be %d bytes, got %d", types.AddressSize, len(nodeID))
	}

	var addr multiaddr.Multiaddr
	if j.PublicAddress != "" {
		addr, err = multiaddr.NewMultiaddr(j.PublicAddress)
		if err != nil {
			return fmt.Errorf("parse public_address: %w", err)
		}
	}

	id.PrivateKey = priv
	id.PublicKey = pub
	copy(id.NodeID[:], nodeID)
	id.Features = j.Features
	id.PublicAddress = addr
	return nil
}

// NodeIDFromPublicKey derives a node ID by hashing the compressed public
// key and truncating to the address width, the same truncation
// crypto.AddressFromPubKey applies to derive a wallet address.
func NodeIDFromPublicKey(pub []byte) types.Address {
	return crypto.AddressFromPubKey(pub)
}

// Generate creates a fresh identity with a random private key and no
// advertised address.
func Generate() (*Identity, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	pub := priv.PublicKey()
	return &Identity{
		PrivateKey: priv,
		PublicKey:  pub,
		NodeID:     NodeIDFromPublicKey(pub),
	}, nil
}

// Load reads the identity record at path. If the file does not exist, a
// fresh identity is generated, written to path (creating any missing
// parent directories), and returned.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := &Identity{}
		if unmarshalErr := json.Unmarshal(data, id); unmarshalErr != nil {
			return nil, fmt.Errorf("parse identity file: %w", unmarshalErr)
		}
		return id, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	return id, nil
}

// Save writes the identity record to path, creating parent directories as
// needed.
func (id *Identity) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}
