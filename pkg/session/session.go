package session

import (
	"math/big"
	"sync"
	"time"

	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/zk/dleq"
)

// State tracks where a session is in the protocol. Transitions are strictly
// Initialized → CommitmentSubmitted → {Verified | Failed}; no step is
// skipped.
type State uint8

const (
	StateInitialized State = iota + 1
	StateCommitmentSubmitted
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateCommitmentSubmitted:
		return "commitment-submitted"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pendingVerification holds the fields that only exist once a commitment
// has been submitted. Keeping them behind a single pointer makes "absent
// in this state" unrepresentable instead of a bundle of optional fields.
type pendingVerification struct {
	commitment dleq.Commitment
	challenge  dleq.ChallengeValues
	// s is the challenge recomputed by the verifier from the submitted
	// challenge values.
	s *big.Int
}

// session is the per-id protocol state. The embedded mutex serializes the
// two mutations (commitment, response) against each other; sessions never
// share a lock, so unrelated sessions cannot block one another.
type session struct {
	mtx sync.Mutex

	id        string
	createdAt time.Time
	params    *group.Parameters

	state   State
	pending *pendingVerification // non-nil iff state >= StateCommitmentSubmitted
}
