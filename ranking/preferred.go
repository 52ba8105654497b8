package ranking

import (
	"math/big"

	"github.com/RaghavSood/ccrouter/swaps"
)

// outputBandBps is the output difference under which two trades are
// considered equivalent and speed decides.
const outputBandBps = 50

// DefaultPreferred prefers the higher output unless the two outputs are
// within half a percent of each other, in which case the faster trade wins.
// On a full tie it returns a. The band makes it intransitive: a can beat b
// and b beat c while c beats a. Policy.Sort accounts for that.
func DefaultPreferred(a, b *swaps.Trade) *swaps.Trade {
	outA, outB := amount(a), amount(b)

	hi, diff := outA, new(big.Int).Sub(outA, outB)
	if outB.Cmp(outA) > 0 {
		hi = outB
	}
	diff.Abs(diff)

	// diff/hi <= 50/10000
	lhs := new(big.Int).Mul(diff, big.NewInt(10000))
	rhs := new(big.Int).Mul(hi, big.NewInt(outputBandBps))
	if lhs.Cmp(rhs) <= 0 {
		if b.EstimatedDuration > 0 && (a.EstimatedDuration == 0 || b.EstimatedDuration < a.EstimatedDuration) {
			return b
		}
		return a
	}

	if outB.Cmp(outA) > 0 {
		return b
	}
	return a
}
