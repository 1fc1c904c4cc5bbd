// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package verifier replays a one-step proof from its serialized form and
// checks the claimed post-state commitment. It has no clock, no I/O and no
// logging so that it can run inside a deterministic guest.
package verifier

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/alt-research/osp/prover"
	"github.com/alt-research/osp/util/hashing"
)

var ErrHashMismatch = errors.New("post-state hash mismatch")

type Result struct {
	Accepted      bool
	PostStateHash common.Hash
	// Trapped is set when the proven step faulted; the post-state is then the
	// errored commitment and the claim can still be accepted.
	Trapped bool
	Reason  string
}

func reject(res *Result, err error) (*Result, error) {
	res.Accepted = false
	res.Reason = err.Error()
	return res, err
}

// Verify decodes the OSP and code proof, replays the step and compares the
// resulting commitment with expected. A nil error means the claim holds.
func Verify(h hashing.Hasher, ospBytes, codeBytes, expected []byte) (*Result, error) {
	res := &Result{}
	if len(expected) != common.HashLength {
		return reject(res, fmt.Errorf("%w: expected hash has %d bytes", prover.ErrDecode, len(expected)))
	}
	osp, err := prover.DecodeOspProof(h, ospBytes)
	if err != nil {
		return reject(res, err)
	}
	cp, err := prover.DecodeCodeProof(codeBytes)
	if err != nil {
		return reject(res, err)
	}
	if err := osp.Run(cp); err != nil {
		if !errors.Is(err, prover.ErrTrapDuringStep) {
			return reject(res, err)
		}
		res.Trapped = true
	}
	res.PostStateHash = osp.Hash()
	if claimed := common.BytesToHash(expected); claimed != res.PostStateHash {
		return reject(res, fmt.Errorf("%w: replay gives %v, claimed %v", ErrHashMismatch, res.PostStateHash, claimed))
	}
	res.Accepted = true
	return res, nil
}

// Inputs are the three blobs in the order the verifier reads them.
type Inputs struct {
	Osp           []byte
	CodeProof     []byte
	PostStateHash []byte
}

func EncodeInputs(ospBytes, codeBytes []byte, post common.Hash) ([]byte, error) {
	return rlp.EncodeToBytes(&Inputs{Osp: ospBytes, CodeProof: codeBytes, PostStateHash: post.Bytes()})
}

func DecodeInputs(data []byte) (*Inputs, error) {
	var in Inputs
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return nil, fmt.Errorf("%w: inputs: %v", prover.ErrDecode, err)
	}
	return &in, nil
}

// VerifyInputs verifies a combined input stream.
func VerifyInputs(h hashing.Hasher, data []byte) (*Result, error) {
	in, err := DecodeInputs(data)
	if err != nil {
		return reject(&Result{}, err)
	}
	return Verify(h, in.Osp, in.CodeProof, in.PostStateHash)
}
