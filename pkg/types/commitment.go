package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CommitmentSize is the length of a compressed Pedersen commitment, matching
// a compressed secp256k1 point.
const CommitmentSize = 33

// Commitment is a Pedersen commitment to a value: a compressed curve point
// hiding both the value and a blinding factor. Commitments are comparable
// and usable as map keys.
type Commitment [CommitmentSize]byte

// IsZero returns true if the commitment is all zeros (never a valid point;
// used as a sentinel for "no commitment").
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}

// String returns the hex-encoded commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// Bytes returns a copy of the commitment as a byte slice.
func (c Commitment) Bytes() []byte {
	b := make([]byte, CommitmentSize)
	copy(b, c[:])
	return b
}

// MarshalJSON encodes the commitment as a hex string.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string into a commitment.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*c = Commitment{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid commitment hex: %w", err)
	}
	if len(decoded) != CommitmentSize {
		return fmt.Errorf("commitment must be %d bytes, got %d", CommitmentSize, len(decoded))
	}
	copy(c[:], decoded)
	return nil
}

// NonceSize is the length of a Schnorr public nonce, same size as a
// commitment (a compressed curve point).
const NonceSize = CommitmentSize

// ScalarSize is the length of a Schnorr signature scalar.
const ScalarSize = 32

// Signature is a Schnorr signature over a Pedersen-committed value: the
// public nonce (R) and the response scalar (s). In the kernel excess
// signature, the implicit public key is the kernel's excess commitment, so
// no separate public key field is carried. Signature is comparable and is
// used directly as the mempool's excess-signature index key.
type Signature struct {
	PublicNonce Commitment       `json:"public_nonce"`
	Scalar      [ScalarSize]byte `json:"scalar"`
}

// IsZero returns true if both signature components are zero.
func (s Signature) IsZero() bool {
	return s.PublicNonce.IsZero() && s.Scalar == [ScalarSize]byte{}
}

// String returns the hex-encoded "nonce:scalar" signature.
func (s Signature) String() string {
	return s.PublicNonce.String() + ":" + hex.EncodeToString(s.Scalar[:])
}

// Bytes returns the canonical byte encoding: public nonce followed by scalar.
func (s Signature) Bytes() []byte {
	b := make([]byte, CommitmentSize+ScalarSize)
	copy(b, s.PublicNonce[:])
	copy(b[CommitmentSize:], s.Scalar[:])
	return b
}

type signatureJSON struct {
	PublicNonce string `json:"public_nonce"`
	Scalar      string `json:"scalar"`
}

// MarshalJSON encodes the signature with hex-encoded fields.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{
		PublicNonce: s.PublicNonce.String(),
		Scalar:      hex.EncodeToString(s.Scalar[:]),
	})
}

// UnmarshalJSON decodes a signature with hex-encoded fields.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var j signatureJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.PublicNonce != "" {
		if err := (&s.PublicNonce).UnmarshalJSON([]byte(`"` + j.PublicNonce + `"`)); err != nil {
			return fmt.Errorf("invalid public_nonce: %w", err)
		}
	}
	if j.Scalar != "" {
		decoded, err := hex.DecodeString(j.Scalar)
		if err != nil {
			return fmt.Errorf("invalid scalar hex: %w", err)
		}
		if len(decoded) != ScalarSize {
			return fmt.Errorf("scalar must be %d bytes, got %d", ScalarSize, len(decoded))
		}
		copy(s.Scalar[:], decoded)
	}
	return nil
}
