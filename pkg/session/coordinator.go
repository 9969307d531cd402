// Package session coordinates interactive Chaum-Pedersen executions across
// independent, concurrent sessions. Each session walks the state machine
// Initialized → CommitmentSubmitted → {Verified | Failed} in lockstep with
// the three protocol operations.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zkauth/chaum-pedersen/internal/hash"
	"github.com/zkauth/chaum-pedersen/internal/params"
	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/pool"
	"github.com/zkauth/chaum-pedersen/pkg/zk/dleq"
)

var (
	// ErrInvalidArgument marks malformed or out-of-range request fields,
	// detected before any expensive work.
	ErrInvalidArgument = errors.New("session: invalid argument")
	// ErrNotFound marks an unknown session id, or one no longer addressable
	// by the attempted operation.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidState marks an operation attempted out of sequence.
	ErrInvalidState = errors.New("session: invalid state")
)

// Coordinator owns the session table. Lookups, inserts and removals take
// the table lock; protocol transitions take only the per-session lock, so
// operations on different sessions proceed independently.
type Coordinator struct {
	mtx      sync.RWMutex
	sessions map[string]*session

	rand         io.Reader
	pl           *pool.Pool
	log          zerolog.Logger
	retainFailed bool
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPool parallelizes group generation over the given worker pool.
func WithPool(pl *pool.Pool) Option {
	return func(c *Coordinator) { c.pl = pl }
}

// WithRand overrides the randomness source (crypto/rand by default).
func WithRand(r io.Reader) Option {
	return func(c *Coordinator) { c.rand = r }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithRetainFailed keeps sessions in the table after a failed verification
// instead of purging them. Retained sessions are terminal either way.
func WithRetainFailed(retain bool) Option {
	return func(c *Coordinator) { c.retainFailed = retain }
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: map[string]*session{},
		rand:     rand.Reader,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Initialize may run concurrently; nonce reads must not interleave.
	c.rand = pool.NewLockedReader(c.rand)
	return c
}

// InitializeProtocol validates the requested bit size, generates fresh
// group parameters and opens a session for them. The CPU-bound prime
// search runs without any shared lock; only the final insert takes the
// table lock.
func (c *Coordinator) InitializeProtocol(ctx context.Context, bitSize uint32) (string, *group.Parameters, error) {
	if bitSize < params.MinBitSize || bitSize > params.MaxBitSize {
		return "", nil, fmt.Errorf("%w: bit size %d outside [%d, %d]",
			ErrInvalidArgument, bitSize, params.MinBitSize, params.MaxBitSize)
	}

	grp, err := group.Generate(ctx, c.rand, int(bitSize), c.pl)
	if err != nil {
		return "", nil, err
	}

	sess := &session{
		params: grp,
		state:  StateInitialized,
	}

	c.mtx.Lock()
	for {
		sess.id = c.newSessionID(grp)
		if _, taken := c.sessions[sess.id]; !taken {
			break
		}
	}
	sess.createdAt = c.now()
	c.sessions[sess.id] = sess
	c.mtx.Unlock()

	c.log.Info().Str("session", sess.id).Uint32("bits", bitSize).Msg("protocol initialized")
	return sess.id, grp, nil
}

// SubmitCommitment stores the prover's commitment and challenge values and
// returns the challenge s, computed here from the submitted y1, y2 — never
// taken from the prover.
func (c *Coordinator) SubmitCommitment(id string, com dleq.Commitment, cv dleq.ChallengeValues) (*big.Int, error) {
	sess, err := c.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mtx.Lock()
	defer sess.mtx.Unlock()

	if sess.state != StateInitialized {
		// A session past Initialized is no longer addressable here.
		return nil, fmt.Errorf("%w: session %q not awaiting a commitment", ErrNotFound, id)
	}
	if !validElements(sess.params.P, com.A1, com.B1, com.C1, cv.Y1, cv.Y2) {
		return nil, fmt.Errorf("%w: commitment values outside (0, p)", ErrInvalidArgument)
	}

	s := dleq.Challenge(cv.Y1, cv.Y2, sess.params.Q)
	sess.pending = &pendingVerification{
		commitment: com,
		challenge:  cv,
		s:          s,
	}
	sess.state = StateCommitmentSubmitted

	c.log.Debug().Str("session", id).Msg("commitment submitted")
	return s, nil
}

// SubmitResponse verifies the prover's response against the stored session
// state. A verified session is purged; a failed one is purged or retained
// per the coordinator's policy.
func (c *Coordinator) SubmitResponse(id string, z *big.Int) (bool, string, error) {
	sess, err := c.lookup(id)
	if err != nil {
		return false, "", err
	}

	sess.mtx.Lock()
	defer sess.mtx.Unlock()

	switch sess.state {
	case StateCommitmentSubmitted:
	case StateInitialized:
		return false, "", fmt.Errorf("%w: session %q has no commitment", ErrInvalidState, id)
	default:
		// A retained terminal session is still known, so the caller gets an
		// out-of-sequence error; a purged one reads as unknown.
		if c.contains(id) {
			return false, "", fmt.Errorf("%w: session %q is %s", ErrInvalidState, id, sess.state)
		}
		return false, "", fmt.Errorf("%w: session %q", ErrNotFound, id)
	}

	if z == nil || z.Sign() < 0 {
		return false, "", fmt.Errorf("%w: response z", ErrInvalidArgument)
	}

	pv := sess.pending
	verified := dleq.Verify(sess.params, pv.commitment, pv.challenge, pv.s, z)
	if verified {
		sess.state = StateVerified
		c.remove(sess.id)
		c.log.Info().Str("session", id).Msg("proof verified")
		return true, "proof verified", nil
	}

	sess.state = StateFailed
	if !c.retainFailed {
		c.remove(sess.id)
	}
	c.log.Info().Str("session", id).Msg("proof verification failed")
	return false, "proof verification failed", nil
}

// PurgeExpired removes sessions created more than maxAge ago and returns
// how many were dropped.
func (c *Coordinator) PurgeExpired(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)

	var expired []*session
	c.mtx.Lock()
	for id, sess := range c.sessions {
		if sess.createdAt.Before(cutoff) {
			expired = append(expired, sess)
			delete(c.sessions, id)
		}
	}
	c.mtx.Unlock()

	// Mark removed sessions terminal so a caller racing with the sweep gets
	// not-found instead of mutating an orphaned entry.
	for _, sess := range expired {
		sess.mtx.Lock()
		sess.state = StateFailed
		sess.mtx.Unlock()
	}
	if len(expired) > 0 {
		c.log.Info().Int("count", len(expired)).Msg("expired sessions purged")
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (c *Coordinator) Len() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.sessions)
}

// lookup finds a session strictly by its id.
func (c *Coordinator) lookup(id string) (*session, error) {
	c.mtx.RLock()
	sess, ok := c.sessions[id]
	c.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	return sess, nil
}

// contains reports whether an id is still in the table, regardless of state.
func (c *Coordinator) contains(id string) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	_, ok := c.sessions[id]
	return ok
}

func (c *Coordinator) remove(id string) {
	c.mtx.Lock()
	delete(c.sessions, id)
	c.mtx.Unlock()
}

// newSessionID derives an identifier from a fresh nonce bound to the
// session's group parameters.
func (c *Coordinator) newSessionID(grp *group.Parameters) string {
	nonce := make([]byte, params.SecBytes)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		panic(fmt.Sprintf("session: reading nonce: %v", err))
	}
	h := hash.New()
	_ = h.WriteAny(nonce, grp.P, grp.Q, grp.G)
	return hex.EncodeToString(h.Sum()[:params.SessionIDBytes])
}

// validElements reports whether every value is in (0, p).
func validElements(p *big.Int, vs ...*big.Int) bool {
	for _, v := range vs {
		if v == nil || v.Sign() <= 0 || v.Cmp(p) >= 0 {
			return false
		}
	}
	return true
}
