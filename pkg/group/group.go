// Package group constructs and validates the safe-prime groups the proof
// operates over: p = 2q+1 with p, q prime, and g generating the order-q
// subgroup of ℤₚˣ.
package group

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/zkauth/chaum-pedersen/internal/params"
	"github.com/zkauth/chaum-pedersen/pkg/math/prime"
)

// Parameters describes a prime-order subgroup of a safe-prime group.
//
// Group arithmetic (commitments, challenge values, verification equations)
// is performed mod P; exponent arithmetic (challenges, responses) mod Q.
type Parameters struct {
	// P is the safe prime, P = 2Q + 1.
	P *big.Int `cbor:"p"`
	// Q is the Sophie Germain prime, the order of the subgroup.
	Q *big.Int `cbor:"q"`
	// G generates the order-Q subgroup of ℤₚˣ.
	G *big.Int `cbor:"g"`
}

var one = big.NewInt(1)

// Validate checks the structural invariants of the parameters, including
// the primality of P and Q. It is intended for parameters received from a
// peer; locally generated parameters satisfy it by construction.
func (g *Parameters) Validate() error {
	if g == nil || g.P == nil || g.Q == nil || g.G == nil {
		return errors.New("group: missing parameters")
	}
	// P = 2Q + 1
	p := new(big.Int).Lsh(g.Q, 1)
	p.Add(p, one)
	if p.Cmp(g.P) != 0 {
		return errors.New("group: p != 2q+1")
	}
	if !prime.Check(g.Q, params.MRIterations) {
		return errors.New("group: q is not prime")
	}
	if !prime.Check(g.P, params.MRIterations) {
		return errors.New("group: p is not prime")
	}
	// 1 < g < p-1
	pMinusOne := new(big.Int).Sub(g.P, one)
	if g.G.Cmp(one) <= 0 || g.G.Cmp(pMinusOne) >= 0 {
		return fmt.Errorf("group: generator out of range")
	}
	// gᑫ = 1 (mod p), so ord(g) divides the prime q; with g != 1 it is q.
	gq := new(big.Int).Exp(g.G, g.Q, g.P)
	if gq.Cmp(one) != 0 {
		return errors.New("group: generator does not have order q")
	}
	return nil
}

// ExponentModulus returns Q as a saferith modulus, for the constant-time
// arithmetic on secret exponents.
func (g *Parameters) ExponentModulus() *saferith.Modulus {
	return saferith.ModulusFromNat(new(saferith.Nat).SetBig(g.Q, g.Q.BitLen()))
}

// BitLen returns the bit length of the safe prime P.
func (g *Parameters) BitLen() int {
	return g.P.BitLen()
}
