package group

import (
	"context"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkauth/chaum-pedersen/pkg/pool"
)

// zeroReader never yields entropy, so the candidate search can never succeed.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestGenerate(t *testing.T) {
	pl := pool.NewPool(0)
	defer pl.TearDown()

	grp, err := Generate(context.Background(), rand.Reader, 256, pl)
	require.NoError(t, err)
	require.NoError(t, grp.Validate())
	assert.Equal(t, 256, grp.P.BitLen())
	assert.Equal(t, 255, grp.Q.BitLen())

	p := new(big.Int).Lsh(grp.Q, 1)
	p.Add(p, big.NewInt(1))
	assert.Zero(t, p.Cmp(grp.P))

	gq := new(big.Int).Exp(grp.G, grp.Q, grp.P)
	assert.Zero(t, gq.Cmp(big.NewInt(1)))
}

func TestGenerateSmall(t *testing.T) {
	grp, err := Generate(context.Background(), rand.Reader, 64, nil)
	require.NoError(t, err)
	require.NoError(t, grp.Validate())
	assert.Equal(t, 64, grp.P.BitLen())
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, rand.Reader, 256, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateAttemptCap(t *testing.T) {
	_, err := generate(context.Background(), zeroReader{}, 64, nil, 5)
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestFindGenerator(t *testing.T) {
	// 23 = 2·11 + 1 is a safe prime.
	p, q := big.NewInt(23), big.NewInt(11)
	g, err := FindGenerator(rand.Reader, p, q)
	require.NoError(t, err)
	assert.NotZero(t, g.Cmp(big.NewInt(1)))
	gq := new(big.Int).Exp(g, q, p)
	assert.Zero(t, gq.Cmp(big.NewInt(1)))
}

func TestValidate(t *testing.T) {
	grp, err := Generate(context.Background(), rand.Reader, 64, nil)
	require.NoError(t, err)

	bad := &Parameters{P: grp.P, Q: new(big.Int).Add(grp.Q, big.NewInt(2)), G: grp.G}
	assert.Error(t, bad.Validate(), "p != 2q+1 must be rejected")

	bad = &Parameters{P: grp.P, Q: grp.Q, G: big.NewInt(1)}
	assert.Error(t, bad.Validate(), "g = 1 must be rejected")

	bad = &Parameters{P: grp.P, Q: grp.Q, G: new(big.Int).Sub(grp.P, big.NewInt(1))}
	assert.Error(t, bad.Validate(), "g = p-1 must be rejected")

	bad = &Parameters{}
	assert.Error(t, bad.Validate())
}

func TestParametersCBOR(t *testing.T) {
	grp, err := Generate(context.Background(), rand.Reader, 64, nil)
	require.NoError(t, err)

	data, err := cbor.Marshal(grp)
	require.NoError(t, err)

	var got Parameters
	require.NoError(t, cbor.Unmarshal(data, &got))
	assert.Zero(t, got.P.Cmp(grp.P))
	assert.Zero(t, got.Q.Cmp(grp.Q))
	assert.Zero(t, got.G.Cmp(grp.G))
}
