// Package validation composes the transaction-level validator roles: a
// purely internal-consistency check (the one the mempool runs on insert),
// and two variants that additionally require a UTXO set to confirm
// inputs exist and timelocks have passed. Ported from the base layer's
// transaction_validators.rs, which composes the same three roles around a
// shared verify_tx/verify_inputs/verify_timelocks trio.
package validation

import (
	"errors"
	"fmt"

	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/tx"
)

// Errors returned by the input/timelock checks.
var (
	ErrUnknownInput = errors.New("transaction spends an input not in the UTXO set")
	ErrImmature     = errors.New("transaction is not yet spendable at the current height")
)

// TxValidator checks a single transaction and returns nil if it passes.
type TxValidator interface {
	Validate(t *tx.Transaction, tipHeight uint64) error
}

// StatelessTxValidator checks only a transaction's internal consistency: it
// never touches chain state, so it is cheap enough to run on every
// transaction entering the unconfirmed pool. Grounded in
// transaction_validators.rs's StatelessTxValidator/verify_tx.
type StatelessTxValidator struct{}

func (StatelessTxValidator) Validate(t *tx.Transaction, _ uint64) error {
	return verifyInternalConsistency(t)
}

// TxInputAndMaturityValidator checks that every input is a known unspent
// output and that the transaction's timelocks have expired, without
// re-checking internal consistency. Grounded in
// transaction_validators.rs's TxInputAndMaturityValidator, for a
// transaction that has already passed StatelessTxValidator once. No code
// outside this package's tests constructs it.
type TxInputAndMaturityValidator struct {
	UTXOs utxo.Set
}

func (v TxInputAndMaturityValidator) Validate(t *tx.Transaction, tipHeight uint64) error {
	if err := verifyInputs(t, v.UTXOs); err != nil {
		return err
	}
	return verifyTimelocks(t, v.UTXOs, tipHeight)
}

// FullTxValidator runs every check: internal consistency, input existence
// and timelocks. Grounded in transaction_validators.rs's FullTxValidator.
// Mempool.Insert does not use it: it runs StatelessTxValidator and
// VerifyInputsKnown instead.
type FullTxValidator struct {
	UTXOs utxo.Set
}

func (v FullTxValidator) Validate(t *tx.Transaction, tipHeight uint64) error {
	if err := verifyInternalConsistency(t); err != nil {
		return err
	}
	if err := verifyInputs(t, v.UTXOs); err != nil {
		return err
	}
	return verifyTimelocks(t, v.UTXOs, tipHeight)
}

func verifyInternalConsistency(t *tx.Transaction) error {
	return t.Validate()
}

// VerifyInputsKnown checks that every input t spends is in the UTXO set.
// Exported separately from the composed validators above because the
// mempool's admission path needs this check without verifyTimelocks'
// reject-on-immature behaviour: an immature transaction is routed to the
// pending pool rather than rejected outright.
func VerifyInputsKnown(t *tx.Transaction, utxos utxo.Set) error {
	return verifyInputs(t, utxos)
}

func verifyInputs(t *tx.Transaction, utxos utxo.Set) error {
	for _, in := range t.Body.Inputs {
		ok, err := utxos.Has(in.Commitment)
		if err != nil {
			return fmt.Errorf("check input %x: %w", in.Commitment, err)
		}
		if !ok {
			return fmt.Errorf("%w: %x", ErrUnknownInput, in.Commitment)
		}
	}
	return nil
}

// verifyTimelocks requires every kernel's lock height and every spent
// input's maturity height to have passed by the next block, mirroring
// verify_timelocks's "min_spendable_height > current_height + 1" check. The
// maturity of a spent input is the maturity recorded against its output in
// the UTXO set, not the maturity the transaction's own new outputs impose on
// their future spenders (tx.MaxOutputMaturity reports the latter and is the
// wrong quantity here).
func verifyTimelocks(t *tx.Transaction, utxos utxo.Set, tipHeight uint64) error {
	minSpendable := t.MaxLockHeight()
	for _, in := range t.Body.Inputs {
		out, err := utxos.Get(in.Commitment)
		if err != nil {
			return fmt.Errorf("look up input %x: %w", in.Commitment, err)
		}
		if out.Maturity > minSpendable {
			minSpendable = out.Maturity
		}
	}
	if minSpendable > tipHeight+1 {
		return fmt.Errorf("%w: min spendable height %d > %d", ErrImmature, minSpendable, tipHeight+1)
	}
	return nil
}
