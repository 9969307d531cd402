// Package dleq implements the Chaum-Pedersen proof of knowledge of a pair
// of discrete logarithms (a, b) behind the commitment
// (a1, b1, c1) = (gᵃ, gᵇ, gᵃᵇ) mod p, without revealing a or b.
//
// Group arithmetic is mod the safe prime p; exponent arithmetic is mod the
// subgroup order q. Secret-dependent exponent arithmetic runs on saferith
// in constant time; public values are plain big.Ints.
package dleq

import (
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/math/sample"
)

// Commitment binds the secrets a and b without revealing them.
type Commitment struct {
	// A1 = gᵃ (mod p)
	A1 *big.Int `cbor:"a1"`
	// B1 = gᵇ (mod p)
	B1 *big.Int `cbor:"b1"`
	// C1 = gᵃᵇ (mod p)
	C1 *big.Int `cbor:"c1"`
}

// ChallengeValues is the prover's first message of a proof: the commitment
// to the fresh nonce x.
type ChallengeValues struct {
	// Y1 = gˣ (mod p)
	Y1 *big.Int `cbor:"y1"`
	// Y2 = b1ˣ (mod p)
	Y2 *big.Int `cbor:"y2"`
}

// Proof is a full, self-contained, non-interactively verifiable transcript.
type Proof struct {
	Commitment      Commitment      `cbor:"commitment"`
	ChallengeValues ChallengeValues `cbor:"challengeValues"`
	// S is the Fiat-Shamir challenge. Verifiers recompute it from Y1, Y2
	// and never trust this field verbatim.
	S *big.Int `cbor:"s"`
	// Z = x + a·s (mod q)
	Z *big.Int `cbor:"z"`
}

// Secrets are the prover's witnesses. They never leave the prover and are
// never serialized.
type Secrets struct {
	A, B *saferith.Nat
}

// NewSecrets samples a witness pair uniformly from [1, q-1].
func NewSecrets(rand io.Reader, grp *group.Parameters) *Secrets {
	q := grp.ExponentModulus()
	return &Secrets{
		A: sample.UnitModN(rand, q),
		B: sample.UnitModN(rand, q),
	}
}

// Commit computes the public commitment to the secrets.
func (s *Secrets) Commit(grp *group.Parameters) Commitment {
	a1 := new(big.Int).Exp(grp.G, s.A.Big(), grp.P)
	b1 := new(big.Int).Exp(grp.G, s.B.Big(), grp.P)
	// g has order q, so the product exponent reduces mod q.
	ab := new(saferith.Nat).ModMul(s.A, s.B, grp.ExponentModulus())
	c1 := new(big.Int).Exp(grp.G, ab.Big(), grp.P)
	return Commitment{A1: a1, B1: b1, C1: c1}
}

// Nonce is the ephemeral secret x, fresh for each proof.
type Nonce struct {
	x *saferith.Nat
}

// NewNonce samples x uniformly from [1, q-1].
func NewNonce(rand io.Reader, grp *group.Parameters) *Nonce {
	return &Nonce{x: sample.UnitModN(rand, grp.ExponentModulus())}
}

// ChallengeValues commits to the nonce: y1 = gˣ, y2 = b1ˣ (mod p).
func (n *Nonce) ChallengeValues(grp *group.Parameters, b1 *big.Int) ChallengeValues {
	x := n.x.Big()
	return ChallengeValues{
		Y1: new(big.Int).Exp(grp.G, x, grp.P),
		Y2: new(big.Int).Exp(b1, x, grp.P),
	}
}

// Response computes z = x + a·s (mod q).
func (n *Nonce) Response(grp *group.Parameters, a *saferith.Nat, s *big.Int) *big.Int {
	q := grp.ExponentModulus()
	sNat := new(saferith.Nat).SetBig(s, grp.Q.BitLen())
	z := new(saferith.Nat).ModMul(a, sNat, q)
	z.ModAdd(z, n.x, q)
	return z.Big()
}

// Challenge derives the Fiat-Shamir challenge
//
//	s = SHA-256(be(y1) ‖ be(y2)) mod q
//
// where be() is the minimal unsigned big-endian encoding: no padding, no
// length prefix, and the empty string for zero. Independent verifiers must
// reproduce this bit for bit, so the byte layout is frozen.
func Challenge(y1, y2, q *big.Int) *big.Int {
	h := sha256.New()
	h.Write(y1.Bytes())
	h.Write(y2.Bytes())
	s := new(big.Int).SetBytes(h.Sum(nil))
	return s.Mod(s, q)
}

// Verify checks both verification equations:
//
//	gᶻ  = a1ˢ · y1 (mod p)
//	b1ᶻ = c1ˢ · y2 (mod p)
//
// The two congruences tie z to the exponents of a1 and c1 through the same
// (x, s); without the true witnesses they hold for an unpredictable s only
// with probability at most 1/q.
func Verify(grp *group.Parameters, com Commitment, cv ChallengeValues, s, z *big.Int) bool {
	if !validGroupElements(grp.P, com.A1, com.B1, com.C1, cv.Y1, cv.Y2) {
		return false
	}
	if s == nil || z == nil || s.Sign() < 0 || z.Sign() < 0 {
		return false
	}

	lhs := new(big.Int).Exp(grp.G, z, grp.P)
	rhs := new(big.Int).Exp(com.A1, s, grp.P)
	rhs.Mul(rhs, cv.Y1)
	rhs.Mod(rhs, grp.P)
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	lhs.Exp(com.B1, z, grp.P)
	rhs.Exp(com.C1, s, grp.P)
	rhs.Mul(rhs, cv.Y2)
	rhs.Mod(rhs, grp.P)
	return lhs.Cmp(rhs) == 0
}

// validGroupElements reports whether every value is in (0, p).
func validGroupElements(p *big.Int, vs ...*big.Int) bool {
	for _, v := range vs {
		if v == nil || v.Sign() <= 0 || v.Cmp(p) >= 0 {
			return false
		}
	}
	return true
}

// Prove produces a full honest transcript for the secrets.
func Prove(rand io.Reader, grp *group.Parameters, secrets *Secrets) *Proof {
	com := secrets.Commit(grp)
	nonce := NewNonce(rand, grp)
	cv := nonce.ChallengeValues(grp, com.B1)
	s := Challenge(cv.Y1, cv.Y2, grp.Q)
	z := nonce.Response(grp, secrets.A, s)
	return &Proof{Commitment: com, ChallengeValues: cv, S: s, Z: z}
}

// IsValid performs the cheap structural checks on a transcript.
func (p *Proof) IsValid(grp *group.Parameters) bool {
	if p == nil || p.S == nil || p.Z == nil {
		return false
	}
	return validGroupElements(grp.P,
		p.Commitment.A1, p.Commitment.B1, p.Commitment.C1,
		p.ChallengeValues.Y1, p.ChallengeValues.Y2)
}

// Verify checks the transcript. The challenge is recomputed from the
// transcript's own challenge values; an embedded S that disagrees with the
// recomputation is rejected outright.
func (p *Proof) Verify(grp *group.Parameters) bool {
	if !p.IsValid(grp) {
		return false
	}
	s := Challenge(p.ChallengeValues.Y1, p.ChallengeValues.Y2, grp.Q)
	if s.Cmp(p.S) != 0 {
		return false
	}
	return Verify(grp, p.Commitment, p.ChallengeValues, s, p.Z)
}
