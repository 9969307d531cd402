// Package prime implements the Miller-Rabin probabilistic primality test.
//
// The test is written out explicitly rather than delegated to
// big.Int.ProbablyPrime: the witness loop below is the contract other
// components (safe-prime search, parameter validation) are specified
// against, including the exact witness range and round count.
package prime

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/zkauth/chaum-pedersen/internal/params"
)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// Check reports whether n is probably prime after the given number of
// Miller-Rabin witness rounds. A composite passes with probability at most
// 4⁻ʳᵒᵘⁿᵈˢ. rounds <= 0 selects the default of params.MRIterations.
//
// Witnesses are drawn from crypto/rand.
func Check(n *big.Int, rounds int) bool {
	return check(rand.Reader, n, rounds)
}

func check(rnd io.Reader, n *big.Int, rounds int) bool {
	if rounds <= 0 {
		rounds = params.MRIterations
	}
	if n == nil || n.Cmp(two) < 0 {
		return false
	}
	if n.Cmp(two) == 0 || n.Cmp(three) == 0 {
		return true
	}
	if n.Bit(0) == 0 {
		return false
	}

	// Write n-1 as d·2^r with d odd.
	nMinusOne := new(big.Int).Sub(n, one)
	d := new(big.Int).Set(nMinusOne)
	r := 0
	for d.Bit(0) == 0 {
		d.Rsh(d, 1)
		r++
	}

	x := new(big.Int)
	for i := 0; i < rounds; i++ {
		a := witness(rnd, n)
		x.Exp(a, d, n)
		if x.Cmp(one) == 0 || x.Cmp(nMinusOne) == 0 {
			continue
		}
		composite := true
		for j := 0; j < r-1; j++ {
			x.Mul(x, x)
			x.Mod(x, n)
			if x.Cmp(nMinusOne) == 0 {
				composite = false
				break
			}
		}
		if composite {
			return false
		}
	}
	return true
}

// witness samples a uniform witness in [2, n-2]. Requires n ≥ 5, which
// check guarantees once the small cases are handled.
func witness(rnd io.Reader, n *big.Int) *big.Int {
	max := new(big.Int).Sub(n, three)
	a, err := rand.Int(rnd, max)
	if err != nil {
		panic(fmt.Sprintf("prime: sampling witness: %v", err))
	}
	return a.Add(a, two)
}
