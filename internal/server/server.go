// Package server exposes the session coordinator over HTTP. It only
// translates between the wire encoding and the coordinator; all protocol
// logic stays behind the session package.
package server

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/session"
	"github.com/zkauth/chaum-pedersen/pkg/zk/dleq"
)

type Server struct {
	coord *session.Coordinator
	log   zerolog.Logger
}

func New(coord *session.Coordinator, log zerolog.Logger) *Server {
	return &Server{coord: coord, log: log}
}

// Register mounts the protocol routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/protocol/initialize", s.initialize)
	e.POST("/v1/protocol/commitment", s.commitment)
	e.POST("/v1/protocol/response", s.response)
	e.POST("/v1/proof/verify", s.verifyProof)
}

func (s *Server) initialize(c echo.Context) error {
	var req InitializeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	id, grp, err := s.coord.InitializeProtocol(c.Request().Context(), req.BitSize)
	if err != nil {
		return s.protocolError(c, err)
	}

	return c.JSON(http.StatusOK, InitializeResponse{
		SessionID: id,
		Params: Parameters{
			P: grp.P.Bytes(),
			Q: grp.Q.Bytes(),
			G: grp.G.Bytes(),
		},
	})
}

func (s *Server) commitment(c echo.Context) error {
	var req CommitmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	com := dleq.Commitment{
		A1: new(big.Int).SetBytes(req.Commitment.A1),
		B1: new(big.Int).SetBytes(req.Commitment.B1),
		C1: new(big.Int).SetBytes(req.Commitment.C1),
	}
	cv := dleq.ChallengeValues{
		Y1: new(big.Int).SetBytes(req.ChallengeValues.Y1),
		Y2: new(big.Int).SetBytes(req.ChallengeValues.Y2),
	}

	challenge, err := s.coord.SubmitCommitment(req.SessionID, com, cv)
	if err != nil {
		return s.protocolError(c, err)
	}

	return c.JSON(http.StatusOK, CommitmentResponse{ChallengeHash: challenge.Bytes()})
}

func (s *Server) response(c echo.Context) error {
	var req ResponseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	verified, msg, err := s.coord.SubmitResponse(req.SessionID, new(big.Int).SetBytes(req.Z))
	if err != nil {
		return s.protocolError(c, err)
	}

	return c.JSON(http.StatusOK, VerificationResponse{Verified: verified, Message: msg})
}

// verifyProof checks a self-contained, CBOR-encoded proof transcript in a
// single round trip. No session is involved: the bundle carries its own
// group parameters, which are validated before anything is computed in them.
func (s *Server) verifyProof(c echo.Context) error {
	var bundle ProofBundle
	if err := cbor.NewDecoder(c.Request().Body).Decode(&bundle); err != nil {
		return badRequest(c, fmt.Errorf("decoding proof bundle: %w", err))
	}
	if err := bundle.Params.Validate(); err != nil {
		return badRequest(c, err)
	}

	verified := bundle.Proof.Verify(&bundle.Params)
	msg := "proof verified"
	if !verified {
		msg = "proof verification failed"
	}
	s.log.Debug().Bool("verified", verified).Msg("non-interactive proof checked")
	return c.JSON(http.StatusOK, VerificationResponse{Verified: verified, Message: msg})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid-argument",
		Message: err.Error(),
	})
}

// protocolError maps the coordinator's error kinds onto status codes.
func (s *Server) protocolError(c echo.Context, err error) error {
	kind, code := "internal", http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		kind, code = "invalid-argument", http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		kind, code = "not-found", http.StatusNotFound
	case errors.Is(err, session.ErrInvalidState):
		kind, code = "invalid-state", http.StatusConflict
	case errors.Is(err, group.ErrGenerationFailed):
		kind, code = "generation-failed", http.StatusInternalServerError
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("protocol operation failed")
	}
	return c.JSON(code, ErrorResponse{Error: kind, Message: err.Error()})
}
