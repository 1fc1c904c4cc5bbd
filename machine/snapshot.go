// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/r3labs/diff/v3"
)

type FrameSnapshot struct {
	ReturnPC uint64
	Locals   []uint64
}

// Snapshot is a detached, comparable copy of the machine state. Memory keeps
// only non-zero bytes, keyed by address.
type Snapshot struct {
	Status  string
	PC      uint64
	Stack   []uint64
	Frames  []FrameSnapshot
	Globals []uint64
	Memory  map[uint64]byte
}

func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		Status:  m.status.String(),
		PC:      m.pc,
		Stack:   slices.Clone(m.stack),
		Globals: slices.Clone(m.globals),
		Memory:  make(map[uint64]byte),
	}
	for _, f := range m.frames {
		snap.Frames = append(snap.Frames, FrameSnapshot{ReturnPC: f.ReturnPC, Locals: slices.Clone(f.Locals)})
	}
	for addr, b := range m.memory {
		if b != 0 {
			snap.Memory[uint64(addr)] = b
		}
	}
	return snap
}

// StepChanges lists what differs between two snapshots, typically the state
// before and after a single step.
func StepChanges(before, after Snapshot) (diff.Changelog, error) {
	return diff.Diff(before, after)
}

func FormatChanges(changes diff.Changelog) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, fmt.Sprintf("%s %s: %v -> %v", c.Type, strings.Join(c.Path, "."), c.From, c.To))
	}
	return out
}
