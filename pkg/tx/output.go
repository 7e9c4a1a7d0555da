package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// OutputFeatures flags the role and spend restrictions of an output.
type OutputFeatures uint8

const (
	// OutputFeaturesDefault marks an ordinary, immediately spendable output.
	OutputFeaturesDefault OutputFeatures = 0
	// OutputFeaturesCoinbase marks a block reward output. Coinbase outputs
	// may not be spent until CoinbaseMaturity confirmations have passed.
	OutputFeaturesCoinbase OutputFeatures = 1
)

// TransactionOutput is a new Pedersen-committed value created by a
// transaction. The range proof attests that the committed value is
// non-negative without revealing it; its verification is delegated to an
// injected RangeProofVerifier since the proving system itself is out of
// scope here.
type TransactionOutput struct {
	Features   OutputFeatures   `json:"features"`
	Commitment types.Commitment `json:"commitment"`
	RangeProof []byte           `json:"range_proof"`
	Maturity   uint64           `json:"maturity"`
}

type outputJSON struct {
	Features   OutputFeatures   `json:"features"`
	Commitment types.Commitment `json:"commitment"`
	RangeProof string           `json:"range_proof"`
	Maturity   uint64           `json:"maturity"`
}

// MarshalJSON encodes the output with a hex-encoded range proof.
func (o TransactionOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		Features:   o.Features,
		Commitment: o.Commitment,
		RangeProof: hex.EncodeToString(o.RangeProof),
		Maturity:   o.Maturity,
	})
}

// UnmarshalJSON decodes an output with a hex-encoded range proof.
func (o *TransactionOutput) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	o.Features = j.Features
	o.Commitment = j.Commitment
	o.Maturity = j.Maturity
	if j.RangeProof != "" {
		b, err := hex.DecodeString(j.RangeProof)
		if err != nil {
			return err
		}
		o.RangeProof = b
	}
	return nil
}

// IsCoinbase returns true if the output carries the coinbase feature flag.
func (o TransactionOutput) IsCoinbase() bool {
	return o.Features&OutputFeaturesCoinbase != 0
}

// SigningBytes returns the canonical byte encoding used to hash the output.
// The range proof is excluded: it is bulky and its validity is independently
// checked by the range-proof verifier, so it need not be covered by the
// output's identity hash.
func (o TransactionOutput) SigningBytes() []byte {
	buf := make([]byte, 0, 1+types.CommitmentSize+8)
	buf = append(buf, byte(o.Features))
	buf = append(buf, o.Commitment[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, o.Maturity)
	return buf
}

// Hash returns the output's content hash, used as a leaf in the UTXO MMR.
func (o TransactionOutput) Hash() types.Hash {
	return crypto.Hash(o.SigningBytes())
}
