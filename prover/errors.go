// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import "errors"

var (
	// ErrDecode means serialized proof bytes could not be decoded.
	ErrDecode = errors.New("malformed proof encoding")
	// ErrOutOfRange means a position lies outside the program.
	ErrOutOfRange = errors.New("position out of range")
	// ErrCodeMismatch means the proof addresses code the given root does not
	// authenticate at that position.
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrMalformedProof means an authentication path or revealed fragment does
	// not reproduce its claimed commitment.
	ErrMalformedProof = errors.New("malformed proof")
	// ErrUnresolvedStep means the committed state cannot supply the operands of
	// the instruction, e.g. on stack underflow.
	ErrUnresolvedStep = errors.New("unresolved step")
	// ErrTrapDuringStep reports that the proven instruction trapped. The
	// post-state is the canonical errored commitment; this is a valid outcome.
	ErrTrapDuringStep = errors.New("trap during step")
)
