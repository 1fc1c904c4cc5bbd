// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package host runs a program up to a disputed step and produces the blobs a
// verifier needs to check that step: the OSP, the code proof and the claimed
// post-state hash.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/r3labs/diff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/machine"
	"github.com/alt-research/osp/prover"
	"github.com/alt-research/osp/util/containers"
	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/verifier"
	"github.com/alt-research/osp/wavm"
)

var (
	ErrNotSuspended = errors.New("machine is not suspended")
	ErrCrossCheck   = errors.New("machine step disagrees with proven step")
	ErrBudget       = errors.New("step budget exceeds maximum")
)

// CrossCheckError is returned when the machine's own step commits to a
// different state than the proven step. Changes is what the machine claims
// the step did.
type CrossCheckError struct {
	Step    uint64
	Machine common.Hash
	Proof   common.Hash
	Changes diff.Changelog
}

func (e *CrossCheckError) Error() string {
	return fmt.Sprintf("%v at step %d: machine %v, proof %v", ErrCrossCheck, e.Step, e.Machine, e.Proof)
}

func (e *CrossCheckError) Unwrap() error {
	return ErrCrossCheck
}

var (
	proveTimer          = metrics.NewRegisteredTimer("osp/host/prove", nil)
	verifyTimer         = metrics.NewRegisteredTimer("osp/host/verify", nil)
	disputesCounter     = metrics.NewRegisteredCounter("osp/host/disputes", nil)
	trappedCounter      = metrics.NewRegisteredCounter("osp/host/disputes/trapped", nil)
	crossCheckFailures  = metrics.NewRegisteredCounter("osp/host/crosscheck/failed", nil)
	codeTreeCacheMisses = metrics.NewRegisteredCounter("osp/host/codetree/miss", nil)
)

type Request struct {
	Program *wavm.Program
	Entry   string
	Args    []wavm.Value
	// Steps is the budget: the dispute is over the instruction that would
	// run after this many steps.
	Steps uint64
}

type Dispute struct {
	Key           bundlestore.Key
	Osp           []byte
	CodeProof     []byte
	PostStateHash common.Hash
	Trapped       bool
	Audit         AuditRecord
	ProveTime     time.Duration
	VerifyTime    time.Duration
}

func (d *Dispute) Bundle() *bundlestore.Bundle {
	return &bundlestore.Bundle{
		Osp:           d.Osp,
		CodeProof:     d.CodeProof,
		PostStateHash: d.PostStateHash,
	}
}

// Inputs is the combined stream a verifier reads.
func (d *Dispute) Inputs() ([]byte, error) {
	return verifier.EncodeInputs(d.Osp, d.CodeProof, d.PostStateHash)
}

type machineFactory func(prog *wavm.Program, entry string, args []wavm.Value) (machine.MachineInterface, error)

func newMachine(prog *wavm.Program, entry string, args []wavm.Value) (machine.MachineInterface, error) {
	return machine.New(prog, entry, args)
}

type Host struct {
	config     *Config
	hasher     hashing.Hasher
	store      bundlestore.Store
	codeTrees  *containers.LruCache[common.Hash, *prover.CodeTree]
	newMachine machineFactory
}

// New creates a host. A nil store disables bundle persistence.
func New(config *Config, store bundlestore.Store) (*Host, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	h, err := hashing.FromName(config.Hasher)
	if err != nil {
		return nil, err
	}
	return &Host{
		config:     config,
		hasher:     h,
		store:      store,
		codeTrees:  containers.NewLruCache[common.Hash, *prover.CodeTree](config.CodeTreeCacheSize),
		newMachine: newMachine,
	}, nil
}

func (h *Host) Hasher() hashing.Hasher {
	return h.hasher
}

func (h *Host) codeTree(prog *wavm.Program) *prover.CodeTree {
	serialized := make([][]byte, len(prog.Code))
	for i, inst := range prog.Code {
		serialized[i] = inst.Serialize()
	}
	key := h.hasher.Hash(serialized...)
	if tree, ok := h.codeTrees.Get(key); ok {
		return tree
	}
	codeTreeCacheMisses.Inc(1)
	tree := prover.BuildCodeTree(h.hasher, prog.Code)
	h.codeTrees.Add(key, tree)
	return tree
}

// Prove runs the request to its budget and proves the next instruction.
func (h *Host) Prove(ctx context.Context, req *Request) (*Dispute, error) {
	if req.Steps > h.config.MaxSteps {
		return nil, fmt.Errorf("%w: %d > %d", ErrBudget, req.Steps, h.config.MaxSteps)
	}
	start := time.Now()
	m, err := h.newMachine(req.Program, req.Entry, req.Args)
	if err != nil {
		return nil, err
	}
	budget := req.Steps
	res, err := m.Run(ctx, &budget)
	if err != nil {
		return nil, err
	}
	if res.Kind != machine.Suspended {
		return nil, fmt.Errorf("%w: %v after %d steps", ErrNotSuspended, res, m.GetStepCount())
	}

	code := h.codeTree(req.Program)
	cp, err := code.ProofFor(res.PC)
	if err != nil {
		return nil, err
	}
	tree := prover.NewStateTree(code, m.State())
	osp, err := prover.MakeOsp(tree, res.PC)
	if err != nil {
		return nil, err
	}
	ospBytes, err := osp.Encode()
	if err != nil {
		return nil, err
	}
	codeBytes, err := cp.Encode()
	if err != nil {
		return nil, err
	}
	trapped := false
	if err := osp.Run(cp); err != nil {
		if !errors.Is(err, prover.ErrTrapDuringStep) {
			return nil, err
		}
		trapped = true
	}
	post := osp.Hash()

	if h.config.CrossCheck {
		if err := h.crossCheck(ctx, m, code.Root(), post); err != nil {
			crossCheckFailures.Inc(1)
			return nil, err
		}
	}
	proveTime := time.Since(start)
	proveTimer.Update(proveTime)

	verifyStart := time.Now()
	if _, err := verifier.Verify(h.hasher, ospBytes, codeBytes, post.Bytes()); err != nil {
		return nil, fmt.Errorf("local verification failed: %w", err)
	}
	verifyTime := time.Since(verifyStart)
	verifyTimer.Update(verifyTime)

	dispute := &Dispute{
		Key: bundlestore.Key{
			ProgramRoot: code.Root(),
			Step:        m.GetStepCount(),
			PC:          res.PC,
		},
		Osp:           ospBytes,
		CodeProof:     codeBytes,
		PostStateHash: post,
		Trapped:       trapped,
		Audit: AuditRecord{
			ProgramRoot: code.Root(),
			PreState:    tree.Hash(),
			Position:    res.PC,
			Opcode:      cp.Instruction.Opcode,
			PostState:   post,
			Trapped:     trapped,
			Elapsed:     proveTime,
		},
		ProveTime:  proveTime,
		VerifyTime: verifyTime,
	}
	disputesCounter.Inc(1)
	if trapped {
		trappedCounter.Inc(1)
	}
	dispute.Audit.Log()

	if h.store != nil {
		if err := h.store.Put(ctx, &dispute.Key, dispute.Bundle()); err != nil {
			return nil, fmt.Errorf("storing bundle %v: %w", &dispute.Key, err)
		}
	}
	return dispute, nil
}

// crossCheck steps a copy of the real machine and compares its commitment
// with the post-state the proof produced.
func (h *Host) crossCheck(ctx context.Context, m machine.MachineInterface, programRoot, proven common.Hash) error {
	next := m.CloneMachineInterface()
	if err := next.Step(ctx, 1); err != nil {
		return err
	}
	stepped := prover.Commit(h.hasher, programRoot, next.State())
	if stepped != proven {
		changes, err := machine.StepChanges(m.State().Snapshot(), next.State().Snapshot())
		if err != nil {
			log.Warn("failed to diff machine step", "err", err)
		}
		log.Warn("machine step disagrees with proof", "step", m.GetStepCount(), "machine", stepped, "proof", proven, "changes", machine.FormatChanges(changes))
		return &CrossCheckError{Step: m.GetStepCount(), Machine: stepped, Proof: proven, Changes: changes}
	}
	return nil
}

// ProveBatch proves independent disputes in parallel. The result slice is in
// request order.
func (h *Host) ProveBatch(ctx context.Context, reqs []*Request) ([]*Dispute, error) {
	disputes := make([]*Dispute, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)
	for i, req := range reqs {
		i, req := i, req // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			d, err := h.Prove(gctx, req)
			if err != nil {
				return fmt.Errorf("dispute %d: %w", i, err)
			}
			disputes[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return disputes, nil
}
