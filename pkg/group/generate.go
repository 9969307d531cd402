package group

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync/atomic"

	"github.com/zkauth/chaum-pedersen/internal/params"
	"github.com/zkauth/chaum-pedersen/pkg/math/prime"
	"github.com/zkauth/chaum-pedersen/pkg/pool"
)

// ErrGenerationFailed indicates the safe-prime search exhausted its attempt
// cap without finding a group. With a sound randomness source this is
// practically unreachable; it exists so a broken source surfaces as an
// error instead of an infinite loop.
var ErrGenerationFailed = errors.New("group: generation failed")

// trialPrimes contains the first 128 odd primes, used to cheaply discard
// candidates before running Miller-Rabin.
var trialPrimes = []uint64{
	3, 5, 7, 11, 13, 17, 19, 23,
	29, 31, 37, 41, 43, 47, 53, 59,
	61, 67, 71, 73, 79, 83, 89, 97,
	101, 103, 107, 109, 113, 127, 131, 137,
	139, 149, 151, 157, 163, 167, 173, 179,
	181, 191, 193, 197, 199, 211, 223, 227,
	229, 233, 239, 241, 251, 257, 263, 269,
	271, 277, 281, 283, 293, 307, 311, 313,
	317, 331, 337, 347, 349, 353, 359, 367,
	373, 379, 383, 389, 397, 401, 409, 419,
	421, 431, 433, 439, 443, 449, 457, 461,
	463, 467, 479, 487, 491, 499, 503, 509,
	521, 523, 541, 547, 557, 563, 569, 571,
	577, 587, 593, 599, 601, 607, 613, 617,
	619, 631, 641, 643, 647, 653, 659, 661,
	673, 677, 683, 691, 701, 709, 719, 727,
	733, 739, 743, 751, 757, 761, 769, 773,
}

// trySafePrimePair tests a single random candidate. It samples an odd q of
// exactly bits-1 bits and returns (2q+1, q) if both are prime, or nils if
// the candidate missed.
func trySafePrimePair(rnd io.Reader, bits int) (p, q *big.Int) {
	qBits := bits - 1
	buf := make([]byte, (qBits+7)/8)
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return nil, nil
	}

	// Force the exact bit length and oddness.
	top := uint(qBits % 8)
	if top == 0 {
		top = 8
	}
	buf[0] &= byte(1<<top) - 1
	buf[0] |= 1 << (top - 1)
	buf[len(buf)-1] |= 1

	q = new(big.Int).SetBytes(buf)

	// Trial division on both q and p = 2q+1 before the expensive tests.
	// q exceeds every trial prime (bits ≥ 16), so q = 0 (mod r) means q is
	// composite, and 2q+1 = 0 (mod r) means p is.
	rem := new(big.Int)
	for _, r := range trialPrimes {
		rem.SetUint64(r)
		rem.Mod(q, rem)
		qr := rem.Uint64()
		if qr == 0 || (2*qr+1)%r == 0 {
			return nil, nil
		}
	}

	if !prime.Check(q, params.MRIterations) {
		return nil, nil
	}
	p = new(big.Int).Lsh(q, 1)
	p.Add(p, one)
	if !prime.Check(p, params.MRIterations) {
		return nil, nil
	}
	return p, q
}

// FindGenerator samples h ∈ [2, p-2] and squares it. The square lands in
// the order-q subgroup, so g = h² is accepted as soon as g != 1; the
// explicit gᑫ = 1 check guards against a caller passing a non-safe p.
func FindGenerator(rnd io.Reader, p, q *big.Int) (*big.Int, error) {
	pMinusThree := new(big.Int).Sub(p, big.NewInt(3))
	two := big.NewInt(2)
	g := new(big.Int)
	gq := new(big.Int)
	for i := 0; i < 255; i++ {
		h, err := rand.Int(rnd, pMinusThree)
		if err != nil {
			return nil, fmt.Errorf("group: sampling generator candidate: %w", err)
		}
		h.Add(h, two)
		g.Mul(h, h)
		g.Mod(g, p)
		if g.Cmp(one) == 0 {
			continue
		}
		gq.Exp(g, q, p)
		if gq.Cmp(one) != 0 {
			continue
		}
		return new(big.Int).Set(g), nil
	}
	return nil, fmt.Errorf("%w: no generator found", ErrGenerationFailed)
}

type searchResult struct {
	p, q *big.Int
	err  error
}

// Generate produces fresh group parameters with a safe prime of the given
// bit length. The candidate search is parallelized over the pool (which
// may be nil) and bounded: the attempt cap or ctx cancellation surfaces as
// an error instead of searching forever. The caller is expected to have
// validated bits against its own policy; this function only requires
// bits ≥ 16 so the sampling below is well formed.
func Generate(ctx context.Context, rnd io.Reader, bits int, pl *pool.Pool) (*Parameters, error) {
	return generate(ctx, rnd, bits, pl, int64(bits)*params.GenerateAttemptsPerBit)
}

func generate(ctx context.Context, rnd io.Reader, bits int, pl *pool.Pool, maxAttempts int64) (*Parameters, error) {
	if bits < 16 {
		return nil, fmt.Errorf("group: bit size %d too small", bits)
	}
	reader := pool.NewLockedReader(rnd)
	var attempts int64
	results := pl.Search(1, func() interface{} {
		if err := ctx.Err(); err != nil {
			return &searchResult{err: err}
		}
		if atomic.AddInt64(&attempts, 1) > maxAttempts {
			return &searchResult{err: fmt.Errorf("%w: no safe prime after %d candidates", ErrGenerationFailed, maxAttempts)}
		}
		p, q := trySafePrimePair(reader, bits)
		if p == nil {
			return nil
		}
		return &searchResult{p: p, q: q}
	})
	res := results[0].(*searchResult)
	if res.err != nil {
		return nil, res.err
	}

	g, err := FindGenerator(rnd, res.p, res.q)
	if err != nil {
		return nil, err
	}
	return &Parameters{P: res.p, Q: res.q, G: g}, nil
}
