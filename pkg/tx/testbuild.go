package tx

import "github.com/andes-chain/basenode/pkg/types"

// NewTestTransaction builds a minimal, structurally valid transaction for
// tests: one input, one output, one kernel with the given fee and
// lock height. seed distinguishes otherwise-identical test transactions by
// varying the commitment and excess signature bytes.
func NewTestTransaction(seed byte, fee types.MicroTari, lockHeight, maturity uint64) *Transaction {
	var inCommit, outCommit, excess types.Commitment
	inCommit[0] = seed
	inCommit[1] = 0x01
	outCommit[0] = seed
	outCommit[1] = 0x02
	excess[0] = seed
	excess[1] = 0x03

	var sig types.Signature
	sig.PublicNonce[0] = seed
	sig.PublicNonce[1] = 0x04
	sig.Scalar[0] = seed

	body := AggregateBody{
		Inputs:  []TransactionInput{{Commitment: inCommit}},
		Outputs: []TransactionOutput{{Commitment: outCommit, Maturity: maturity}},
		Kernels: []TransactionKernel{{Fee: fee, LockHeight: lockHeight, Excess: excess, ExcessSig: sig}},
	}
	body.Sort()

	return &Transaction{Body: body}
}
