package params

import "time"

const (
	// SecParam is the computational security parameter, in bits.
	SecParam = 256
	SecBytes = SecParam / 8

	// MRIterations is the number of Miller-Rabin witness rounds performed
	// when testing a candidate for primality. The false positive rate of a
	// full test is at most 4⁻⁴⁰.
	MRIterations = 40

	// MinBitSize and MaxBitSize bound the size of the safe prime a caller
	// may request when initializing a protocol session.
	MinBitSize = 256
	MaxBitSize = 4096

	// GenerateAttemptsPerBit scales the cap on safe-prime candidates tried
	// before group generation gives up. The expected number of candidates
	// grows quadratically with the bit size, so the cap does too; for b-bit
	// groups the cap is b·GenerateAttemptsPerBit, roughly an order of
	// magnitude above the expectation at 4096 bits.
	GenerateAttemptsPerBit = 4096

	// SessionIDBytes is the length of a session identifier before hex encoding.
	SessionIDBytes = 16

	// SessionTTL is how long an unfinished session may stay in the table
	// before the expiry sweep removes it.
	SessionTTL = 10 * time.Minute
)
