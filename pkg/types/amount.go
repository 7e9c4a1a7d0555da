package types

import "fmt"

// MicroTari is the atomic unit of value used in transactions, kernels and
// block rewards. One displayed coin equals 1,000,000 MicroTari.
type MicroTari uint64

// MicroTariPerCoin is the number of MicroTari in one whole coin.
const MicroTariPerCoin MicroTari = 1_000_000

// String renders the amount as a whole-coin decimal.
func (a MicroTari) String() string {
	whole := a / MicroTariPerCoin
	frac := a % MicroTariPerCoin
	return fmt.Sprintf("%d.%06d", whole, frac)
}
