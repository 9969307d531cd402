// Package hash wraps blake3 with domain separation for deriving
// identifiers from protocol state, such as session ids bound to freshly
// generated group parameters.
//
// The Fiat-Shamir challenge of the proof itself does NOT go through this
// package: its byte layout is a fixed interoperability contract (plain
// SHA-256 over unpadded big-endian encodings) and lives with the proof.
package hash

import (
	"fmt"
	"io"
	"math/big"

	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the length returned by Sum.
const DigestLengthBytes = 32

// Hash is an extendable-output hash accumulating domain-separated writes.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash with an empty state.
func New() *Hash {
	return &Hash{h: blake3.New()}
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current
// hash state. If a different length is required, use
// io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny writes data of several types to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - *big.Int
//   - hash.WriterToWithDomain
//
// This function applies its own domain separation for the first two types.
// The last type already declares its domain, which is respected.
func (hash *Hash) WriteAny(data ...interface{}) error {
	var err error
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "[]byte",
				Bytes:     t,
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write []byte: %w", err)
			}
		case *big.Int:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *big.Int: nil")
			}
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "big.Int",
				Bytes:     t.Bytes(),
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write *big.Int: %w", err)
			}
		case WriterToWithDomain:
			if err = writeWithDomain(hash.h, t); err != nil {
				return fmt.Errorf("hash.Hash: write io.WriterTo: %w", err)
			}
		default:
			panic("hash.Hash: unsupported type")
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
