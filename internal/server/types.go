package server

import (
	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/zk/dleq"
)

// Wire DTOs for the three protocol operations. Every big integer crosses
// the boundary as its unsigned big-endian bytes (base64 in JSON), with no
// sign bit and no fixed width; zero-length encodes zero.

type InitializeRequest struct {
	BitSize uint32 `json:"bitSize"`
}

type Parameters struct {
	P []byte `json:"p"`
	Q []byte `json:"q"`
	G []byte `json:"g"`
}

type InitializeResponse struct {
	SessionID string     `json:"sessionId"`
	Params    Parameters `json:"params"`
}

type Commitment struct {
	A1 []byte `json:"a1"`
	B1 []byte `json:"b1"`
	C1 []byte `json:"c1"`
}

type ChallengeValues struct {
	Y1 []byte `json:"y1"`
	Y2 []byte `json:"y2"`
}

type CommitmentRequest struct {
	SessionID       string          `json:"sessionId"`
	Commitment      Commitment      `json:"commitment"`
	ChallengeValues ChallengeValues `json:"challengeValues"`
}

type CommitmentResponse struct {
	ChallengeHash []byte `json:"challengeHash"`
}

type ResponseRequest struct {
	SessionID string `json:"sessionId"`
	Z         []byte `json:"z"`
}

type VerificationResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// ProofBundle is the non-interactive verification payload: a full proof
// transcript together with the group it lives in, CBOR-encoded. Unlike the
// interactive routes it carries big integers natively, via the cbor tags on
// the underlying types.
type ProofBundle struct {
	Params group.Parameters `cbor:"params"`
	Proof  dleq.Proof       `cbor:"proof"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
