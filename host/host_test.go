// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package host

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/machine"
	"github.com/alt-research/osp/prover"
	"github.com/alt-research/osp/util/testhelpers"
	"github.com/alt-research/osp/verifier"
	"github.com/alt-research/osp/wavm"
)

func newTestHost(t *testing.T, store bundlestore.Store) *Host {
	t.Helper()
	config := TestConfig
	h, err := New(&config, store)
	testhelpers.RequireImpl(t, err)
	return h
}

func fibRequest(n, steps uint64) *Request {
	return &Request{
		Program: wavm.FibProgram(),
		Entry:   wavm.FibFunction,
		Args:    []wavm.Value{n},
		Steps:   steps,
	}
}

func TestProveFibAddStep(t *testing.T) {
	logHandler := testhelpers.InitTestLog(t, log.LevelInfo)
	h := newTestHost(t, nil)
	dispute, err := h.Prove(context.Background(), fibRequest(10, 10))
	require.NoError(t, err)
	require.False(t, dispute.Trapped)
	require.Equal(t, uint64(10), dispute.Key.Step)
	require.Equal(t, uint64(10), dispute.Key.PC)
	require.Equal(t, wavm.I32Add, dispute.Audit.Opcode)
	require.Equal(t, uint64(10), dispute.Audit.Position)
	require.Equal(t, dispute.PostStateHash, dispute.Audit.PostState)
	require.Contains(t, dispute.Audit.String(), "position 10 (i32.add)")
	require.True(t, logHandler.WasLogged("proved step"))

	stream, err := dispute.Inputs()
	require.NoError(t, err)
	res, err := verifier.VerifyInputs(h.Hasher(), stream)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, dispute.PostStateHash, res.PostStateHash)

	// The claimed post-state is the commitment of the machine one step later.
	mach, err := machine.New(wavm.FibProgram(), wavm.FibFunction, []wavm.Value{10})
	require.NoError(t, err)
	require.NoError(t, mach.Step(context.Background(), 11))
	require.Equal(t, prover.Commit(h.Hasher(), dispute.Key.ProgramRoot, mach), dispute.PostStateHash)
}

func TestProveRequiresSuspendedMachine(t *testing.T) {
	h := newTestHost(t, nil)
	_, err := h.Prove(context.Background(), fibRequest(10, 1_000))
	require.ErrorIs(t, err, ErrNotSuspended)

	_, err = h.Prove(context.Background(), &Request{
		Program: wavm.OutOfBoundsProgram(),
		Entry:   wavm.OutOfBoundsFunction,
		Steps:   5,
	})
	require.ErrorIs(t, err, ErrNotSuspended)

	_, err = h.Prove(context.Background(), fibRequest(10, TestConfig.MaxSteps+1))
	require.ErrorIs(t, err, ErrBudget)

	_, err = h.Prove(context.Background(), &Request{Program: wavm.FibProgram(), Entry: wavm.FibFunction, Steps: 1})
	require.ErrorIs(t, err, machine.ErrArguments)
}

func TestProveTrappingStep(t *testing.T) {
	h := newTestHost(t, nil)
	dispute, err := h.Prove(context.Background(), &Request{
		Program: wavm.OutOfBoundsProgram(),
		Entry:   wavm.OutOfBoundsFunction,
		Steps:   1,
	})
	require.NoError(t, err)
	require.True(t, dispute.Trapped)
	require.Equal(t, wavm.I32Load, dispute.Audit.Opcode)
	require.Equal(t, prover.ErroredHash(h.Hasher()), dispute.PostStateHash)

	res, err := verifier.Verify(h.Hasher(), dispute.Osp, dispute.CodeProof, dispute.PostStateHash.Bytes())
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.True(t, res.Trapped)
}

func incorrectFactory(incorrectStep uint64) machineFactory {
	return func(prog *wavm.Program, entry string, args []wavm.Value) (machine.MachineInterface, error) {
		mach, err := machine.New(prog, entry, args)
		if err != nil {
			return nil, err
		}
		return machine.NewIncorrectMachine(mach, incorrectStep), nil
	}
}

func TestCrossCheckCatchesIncorrectMachine(t *testing.T) {
	logHandler := testhelpers.InitTestLog(t, log.LevelWarn)
	h := newTestHost(t, nil)
	h.newMachine = incorrectFactory(11)
	_, err := h.Prove(context.Background(), fibRequest(10, 10))
	require.ErrorIs(t, err, ErrCrossCheck)
	require.True(t, logHandler.WasLogged("machine step disagrees with proof"))

	var crossErr *CrossCheckError
	require.True(t, errors.As(err, &crossErr))
	require.Equal(t, uint64(10), crossErr.Step)
	require.NotEqual(t, crossErr.Machine, crossErr.Proof)
	touched := map[string]bool{}
	for _, change := range crossErr.Changes {
		touched[change.Path[0]] = true
	}
	require.Equal(t, map[string]bool{"PC": true, "Stack": true}, touched)

	// Lying only about later steps does not affect this dispute.
	h.newMachine = incorrectFactory(12)
	_, err = h.Prove(context.Background(), fibRequest(10, 10))
	require.NoError(t, err)
}

func TestVerifierRejectsIncorrectMachineClaim(t *testing.T) {
	config := TestConfig
	config.CrossCheck = false
	h, err := New(&config, nil)
	require.NoError(t, err)
	h.newMachine = incorrectFactory(11)
	dispute, err := h.Prove(context.Background(), fibRequest(10, 10))
	require.NoError(t, err)

	mach, err := incorrectFactory(11)(wavm.FibProgram(), wavm.FibFunction, []wavm.Value{10})
	require.NoError(t, err)
	require.NoError(t, mach.Step(context.Background(), 11))
	claim := prover.Commit(h.Hasher(), dispute.Key.ProgramRoot, mach.State())
	require.NotEqual(t, dispute.PostStateHash, claim)

	res, err := verifier.Verify(h.Hasher(), dispute.Osp, dispute.CodeProof, claim.Bytes())
	require.ErrorIs(t, err, verifier.ErrHashMismatch)
	require.False(t, res.Accepted)
}

func TestProveBatchEveryStep(t *testing.T) {
	ctx := context.Background()
	store := bundlestore.NewDirStore(t.TempDir(), -1)
	require.NoError(t, store.Init(ctx))
	defer func() { require.NoError(t, store.Close()) }()
	h := newTestHost(t, store)

	mach, err := machine.New(wavm.SumSquaresProgram(), wavm.SumSquaresFunction, []wavm.Value{3})
	require.NoError(t, err)
	budget := uint64(10_000)
	res, err := mach.Run(ctx, &budget)
	require.NoError(t, err)
	require.Equal(t, machine.Completed, res.Kind)
	total := mach.GetStepCount()

	reqs := make([]*Request, total)
	for i := range reqs {
		reqs[i] = &Request{
			Program: wavm.SumSquaresProgram(),
			Entry:   wavm.SumSquaresFunction,
			Args:    []wavm.Value{3},
			Steps:   uint64(i),
		}
	}
	disputes, err := h.ProveBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, disputes, len(reqs))
	require.Equal(t, 1, h.codeTrees.Len())

	for i, d := range disputes {
		require.Equal(t, uint64(i), d.Key.Step)
		if i > 0 {
			// Each post-state is the next dispute's pre-state.
			require.Equal(t, disputes[i-1].PostStateHash, d.Audit.PreState, "step %d", i)
		}
		bundle, err := store.Get(ctx, &d.Key)
		require.NoError(t, err)
		res, err := verifier.Verify(h.Hasher(), bundle.Osp, bundle.CodeProof, bundle.PostStateHash.Bytes())
		require.NoError(t, err, "step %d", i)
		require.True(t, res.Accepted)
	}

	// The same dispute cannot be stored twice.
	_, err = h.ProveBatch(ctx, reqs[:1])
	require.ErrorIs(t, err, bundlestore.ErrAlreadyExists)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig
	require.NoError(t, config.Validate())
	config.Hasher = "md5"
	require.Error(t, config.Validate())
	config = DefaultConfig
	config.Concurrency = 0
	require.Error(t, config.Validate())
	config = DefaultConfig
	config.MaxSteps = 0
	require.Error(t, config.Validate())
}
