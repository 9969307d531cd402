package prime

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sieve returns primality of every n < limit by Eratosthenes.
func sieve(limit int) []bool {
	isPrime := make([]bool, limit)
	for i := 2; i < limit; i++ {
		isPrime[i] = true
	}
	for p := 2; p*p < limit; p++ {
		if !isPrime[p] {
			continue
		}
		for i := p * p; i < limit; i += p {
			isPrime[i] = false
		}
	}
	return isPrime
}

func TestCheckSmall(t *testing.T) {
	isPrime := sieve(1000)
	for n := 0; n < 1000; n++ {
		got := Check(big.NewInt(int64(n)), 0)
		assert.Equal(t, isPrime[n], got, "n = %d", n)
	}
}

func TestCheckNegative(t *testing.T) {
	assert.False(t, Check(big.NewInt(-7), 0))
	assert.False(t, Check(big.NewInt(0), 0))
	assert.False(t, Check(big.NewInt(1), 0))
	assert.False(t, Check(nil, 0))
}

func TestCheckLarge(t *testing.T) {
	// 2¹²⁷-1 is a Mersenne prime.
	m127 := new(big.Int).Lsh(big.NewInt(1), 127)
	m127.Sub(m127, big.NewInt(1))
	assert.True(t, Check(m127, 0))

	// The square of a prime must be rejected.
	sq := new(big.Int).Mul(m127, m127)
	assert.False(t, Check(sq, 0))

	// 2¹²⁸+1 = 59649589127497217 · 5704689200685129054721.
	f7 := new(big.Int).Lsh(big.NewInt(1), 128)
	f7.Add(f7, big.NewInt(1))
	assert.False(t, Check(f7, 0))
}

func TestCheckCarmichael(t *testing.T) {
	// Carmichael numbers fool Fermat tests but not Miller-Rabin.
	for _, n := range []int64{561, 1105, 1729, 2465, 2821, 6601, 8911} {
		require.False(t, Check(big.NewInt(n), 0), "n = %d", n)
	}
}
