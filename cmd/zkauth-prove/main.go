// Command zkauth-prove runs an honest prover against a zkauthd server. By
// default it walks the interactive protocol: initialize, commit, receive the
// challenge, respond, report the verdict. With -non-interactive it instead
// generates a group locally, builds a self-contained proof and submits the
// CBOR bundle in a single round trip.
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/zkauth/chaum-pedersen/internal/server"
	"github.com/zkauth/chaum-pedersen/pkg/group"
	"github.com/zkauth/chaum-pedersen/pkg/zk/dleq"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8321", "zkauthd base URL")
	bits := flag.Uint("bits", 256, "requested safe prime bit size")
	nonInteractive := flag.Bool("non-interactive", false, "submit a self-contained proof bundle instead of running the interactive protocol")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	client := &http.Client{Timeout: 5 * time.Minute}

	if *nonInteractive {
		proveNonInteractive(log, client, *serverURL, int(*bits))
		return
	}

	var initResp server.InitializeResponse
	err := post(client, *serverURL+"/v1/protocol/initialize",
		server.InitializeRequest{BitSize: uint32(*bits)}, &initResp)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize")
	}
	log.Info().Str("session", initResp.SessionID).Msg("session opened")

	grp := &group.Parameters{
		P: new(big.Int).SetBytes(initResp.Params.P),
		Q: new(big.Int).SetBytes(initResp.Params.Q),
		G: new(big.Int).SetBytes(initResp.Params.G),
	}
	// Never trust parameters from the network.
	if err := grp.Validate(); err != nil {
		log.Fatal().Err(err).Msg("server sent invalid group parameters")
	}
	log.Info().Int("bits", grp.BitLen()).Msg("group parameters validated")

	secrets := dleq.NewSecrets(rand.Reader, grp)
	com := secrets.Commit(grp)
	nonce := dleq.NewNonce(rand.Reader, grp)
	cv := nonce.ChallengeValues(grp, com.B1)

	var comResp server.CommitmentResponse
	err = post(client, *serverURL+"/v1/protocol/commitment", server.CommitmentRequest{
		SessionID: initResp.SessionID,
		Commitment: server.Commitment{
			A1: com.A1.Bytes(), B1: com.B1.Bytes(), C1: com.C1.Bytes(),
		},
		ChallengeValues: server.ChallengeValues{
			Y1: cv.Y1.Bytes(), Y2: cv.Y2.Bytes(),
		},
	}, &comResp)
	if err != nil {
		log.Fatal().Err(err).Msg("submit commitment")
	}

	s := new(big.Int).SetBytes(comResp.ChallengeHash)
	if s.Cmp(dleq.Challenge(cv.Y1, cv.Y2, grp.Q)) != 0 {
		log.Fatal().Msg("server challenge disagrees with the local recomputation")
	}

	z := nonce.Response(grp, secrets.A, s)
	var verResp server.VerificationResponse
	err = post(client, *serverURL+"/v1/protocol/response", server.ResponseRequest{
		SessionID: initResp.SessionID,
		Z:         z.Bytes(),
	}, &verResp)
	if err != nil {
		log.Fatal().Err(err).Msg("submit response")
	}

	if !verResp.Verified {
		log.Error().Str("message", verResp.Message).Msg("proof rejected")
		os.Exit(1)
	}
	log.Info().Str("message", verResp.Message).Msg("proof accepted")
}

// proveNonInteractive generates the group on the prover's side, so the
// server only ever sees the finished transcript.
func proveNonInteractive(log zerolog.Logger, client *http.Client, serverURL string, bits int) {
	grp, err := group.Generate(context.Background(), rand.Reader, bits, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("generate group")
	}
	log.Info().Int("bits", grp.BitLen()).Msg("group generated")

	proof := dleq.Prove(rand.Reader, grp, dleq.NewSecrets(rand.Reader, grp))

	body, err := cbor.Marshal(server.ProofBundle{Params: *grp, Proof: *proof})
	if err != nil {
		log.Fatal().Err(err).Msg("encode proof bundle")
	}
	resp, err := client.Post(serverURL+"/v1/proof/verify", "application/cbor", bytes.NewReader(body))
	if err != nil {
		log.Fatal().Err(err).Msg("submit proof bundle")
	}
	defer resp.Body.Close()

	var verResp server.VerificationResponse
	if resp.StatusCode != http.StatusOK {
		var errResp server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			log.Fatal().Int("status", resp.StatusCode).Msg("submit proof bundle")
		}
		log.Fatal().Str("error", errResp.Error).Str("message", errResp.Message).Msg("submit proof bundle")
	}
	if err := json.NewDecoder(resp.Body).Decode(&verResp); err != nil {
		log.Fatal().Err(err).Msg("decode verdict")
	}
	if !verResp.Verified {
		log.Error().Str("message", verResp.Message).Msg("proof rejected")
		os.Exit(1)
	}
	log.Info().Str("message", verResp.Message).Msg("proof accepted")
}

func post(client *http.Client, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("%s: status %d", url, resp.StatusCode)
		}
		return fmt.Errorf("%s: %s: %s", url, errResp.Error, errResp.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
