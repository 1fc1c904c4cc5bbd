// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package host

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/alt-research/osp/wavm"
)

// AuditRecord summarises a proven step for operators.
type AuditRecord struct {
	ProgramRoot common.Hash
	PreState    common.Hash
	Position    uint64
	Opcode      wavm.Opcode
	PostState   common.Hash
	Trapped     bool
	Elapsed     time.Duration
}

func (r AuditRecord) String() string {
	outcome := "ok"
	if r.Trapped {
		outcome = "trapped"
	}
	return fmt.Sprintf(
		"program root %v\npre-state %v\nposition %d (%v)\npost-state %v (%s)\nelapsed %v",
		r.ProgramRoot, r.PreState, r.Position, r.Opcode, r.PostState, outcome, r.Elapsed,
	)
}

func (r AuditRecord) Log() {
	log.Info("proved step",
		"programRoot", r.ProgramRoot,
		"preState", r.PreState,
		"position", r.Position,
		"opcode", r.Opcode,
		"postState", r.PostState,
		"trapped", r.Trapped,
		"elapsed", r.Elapsed,
	)
}
