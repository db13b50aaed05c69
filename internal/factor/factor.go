// Package factor implements Pollard's rho factorization (with Floyd
// tortoise-and-hare cycle detection, not Brent's) of the
// 63-bit semiprime `pq` the server hands the client in Step 1 of the
// handshake (spec.md §4.5, §9: "factorization needs only Pollard-Brent
// rho"). No factorization routine exists in the teacher or anywhere in
// the pack; this is new code over stdlib math/big, justified because pq
// fits in 63 bits and factors in microseconds — pulling in an external
// factorization library for that would be unjustified weight the pack
// never exercises elsewhere (see DESIGN.md).
package factor

import (
	"fmt"
	"math/big"
)

// Factorize splits pq (a product of two distinct primes) into p < q.
func Factorize(pq uint64) (p, q uint64, err error) {
	if pq < 2 {
		return 0, 0, fmt.Errorf("factor: pq=%d is not factorizable", pq)
	}
	if pq%2 == 0 {
		return 2, pq / 2, nil
	}

	d := pollardBrentRho(pq)
	if d == 0 || d == pq {
		return 0, 0, fmt.Errorf("factor: failed to factorize %d", pq)
	}
	a, b := d, pq/d
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

// pollardBrentRho returns a nontrivial factor of n, or 0 on failure.
func pollardBrentRho(n uint64) uint64 {
	if n%2 == 0 {
		return 2
	}

	nBig := new(big.Int).SetUint64(n)

	for c := uint64(1); c < 64; c++ {
		g := func(x *big.Int) *big.Int {
			// x = (x*x + c) mod n
			x2 := new(big.Int).Mul(x, x)
			x2.Add(x2, big.NewInt(int64(c)))
			return x2.Mod(x2, nBig)
		}

		x := big.NewInt(2)
		y := big.NewInt(2)
		d := big.NewInt(1)

		for d.Cmp(big.NewInt(1)) == 0 {
			x = g(x)
			y = g(g(y))
			diff := new(big.Int).Sub(x, y)
			diff.Abs(diff)
			if diff.Sign() == 0 {
				break // this c produced a cycle without a factor; try another
			}
			d = new(big.Int).GCD(nil, nil, diff, nBig)
		}

		if d.Cmp(big.NewInt(1)) != 0 && d.Cmp(nBig) != 0 {
			return d.Uint64()
		}
	}
	return 0
}
