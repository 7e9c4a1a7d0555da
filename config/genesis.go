package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units (MicroTari). All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// CoinbaseMaturity is the number of blocks a coinbase output must wait
// before it can be spent. Prevents issues during reorgs.
const CoinbaseMaturity uint64 = 20

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockWeight = 2_000_000 // max sum of SigningBytes lengths across a block's body
	MaxBlockKernels = 500      // max kernels per block (including coinbase)
	MaxTxInputs     = 2500     // max inputs per transaction
	MaxTxOutputs    = 2500     // max outputs per transaction
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"` // Native coin symbol (e.g., "ANDE")

	// Genesis block
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Genesis coinbase: a coinbase kernel cannot be struck without a known
	// blinding factor, so genesis outputs are pre-computed test vectors
	// rather than an address->value allocation map (output values are
	// hidden behind Pedersen commitments, so there is nothing to "hand out"
	// in plaintext at genesis).
	Coinbase GenesisCoinbase `json:"coinbase"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// GenesisCoinbase is the single coinbase output/kernel pair that seeds the
// chain. Commitment and ExcessSig are fixed 33/65-byte values computed
// offline when the network launches; RangeProof may be empty for networks
// that disable range-proof verification of the genesis block.
type GenesisCoinbase struct {
	Commitment types.Commitment `json:"commitment"`
	RangeProof []byte           `json:"range_proof,omitempty"`
	Excess     types.Commitment `json:"excess"`
	ExcessSig  types.Signature  `json:"excess_sig"`
}

// ForkSchedule defines block heights at which protocol upgrades activate.
// A zero value means the fork is not scheduled.
type ForkSchedule struct {
	// Future forks are added here as fields.
}

// IsActive returns true if a fork at forkHeight has activated at currentHeight.
// Returns false if forkHeight is 0 (not scheduled).
func (f *ForkSchedule) IsActive(forkHeight, currentHeight uint64) bool {
	return forkHeight > 0 && currentHeight >= forkHeight
}

// ProtocolConfig holds consensus-critical rules. All nodes MUST agree on
// these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
	Forks     ForkSchedule   `json:"forks,omitempty"`
}

// ConsensusRules defines how proof-of-work blocks are produced and
// validated.
type ConsensusRules struct {
	// TargetBlockTime is the target number of seconds between blocks.
	TargetBlockTime int `json:"target_block_time"`

	// InitialDifficulty seeds the LWMA difficulty window before BlockWindow
	// blocks of real history are available.
	InitialDifficulty uint64 `json:"initial_difficulty"`

	// BlockWindow is the number of past blocks the LWMA difficulty
	// retarget averages over.
	BlockWindow int `json:"block_window"`

	// Economics
	BlockReward     uint64 `json:"block_reward"`               // base units per block, before halving
	HalvingInterval uint64 `json:"halving_interval,omitempty"` // blocks between reward halvings (0 = no halving)
	MinFeeRate      uint64 `json:"min_fee_rate"`                // minimum fee rate, base units per byte of SigningBytes
}

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	g := &Genesis{
		ChainID:   "andes-mainnet-1",
		ChainName: "Andes Mainnet",
		Symbol:    "ANDE",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Andes Genesis",
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				TargetBlockTime:   120,
				InitialDifficulty: 1 << 16,
				BlockWindow:       90,
				BlockReward:       20 * MilliCoin,
				HalvingInterval:   0,
				MinFeeRate:        10_000,
			},
		},
	}
	g.Coinbase.Commitment[0] = 0x01
	g.Coinbase.Excess[0] = 0x02
	g.Coinbase.ExcessSig.PublicNonce[0] = 0x03
	return g
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "andes-testnet-1"
	g.ChainName = "Andes Testnet"
	g.ExtraData = "Andes Testnet Genesis"
	g.Protocol.Consensus.MinFeeRate = 10 // very low, for testing
	g.Protocol.Consensus.InitialDifficulty = 1 << 8
	g.Coinbase.Commitment[0] = 0x11
	g.Coinbase.Excess[0] = 0x12
	g.Coinbase.ExcessSig.PublicNonce[0] = 0x13
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Protocol.Consensus.InitialDifficulty == 0 {
		return fmt.Errorf("initial_difficulty must be positive")
	}
	if g.Protocol.Consensus.TargetBlockTime <= 0 {
		return fmt.Errorf("target_block_time must be positive")
	}
	if g.Protocol.Consensus.BlockWindow <= 0 {
		return fmt.Errorf("block_window must be positive")
	}
	if g.Protocol.Consensus.BlockReward == 0 {
		return fmt.Errorf("block_reward must be positive")
	}
	if g.Coinbase.Commitment.IsZero() {
		return fmt.Errorf("coinbase commitment is required")
	}
	if g.Coinbase.Excess.IsZero() {
		return fmt.Errorf("coinbase excess is required")
	}
	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration. Used to identify
// the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
