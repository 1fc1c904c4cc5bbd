// Copyright 2022-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package testhelpers

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type PseudoRandomDataSource struct {
	salt  common.Hash
	index uint64
}

// pseudorandom source that repeats on different executions
// T param is to make sure it's only used in testing
func NewPseudoRandomDataSource(_ testing.TB, saltParam uint64) *PseudoRandomDataSource {
	salt := crypto.Keccak256Hash([]byte{'s'}, binary.BigEndian.AppendUint64(nil, saltParam))
	return &PseudoRandomDataSource{
		salt: salt,
	}
}

func (r *PseudoRandomDataSource) GetHash() common.Hash {
	r.index++
	return crypto.Keccak256Hash(r.salt[:], binary.BigEndian.AppendUint64(nil, r.index))
}

func (r *PseudoRandomDataSource) GetUint64() uint64 {
	return binary.BigEndian.Uint64(r.GetHash().Bytes()[:8])
}

// GetUint64Below returns a value in [0, limit).
func (r *PseudoRandomDataSource) GetUint64Below(limit uint64) uint64 {
	return r.GetUint64() % limit
}

func (r *PseudoRandomDataSource) GetValues(count int) []uint64 {
	ret := make([]uint64, count)
	for i := range ret {
		ret[i] = r.GetUint64()
	}
	return ret
}

func (r *PseudoRandomDataSource) GetData(size int) []byte {
	ret := []byte{}
	for len(ret) < size {
		ret = append(ret, r.GetHash().Bytes()...)
	}
	return ret[:size]
}
