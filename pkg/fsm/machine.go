// Package fsm runs the local network bring-up as a strictly linear
// superfly/fsm machine: prerequisites first, then each service started and
// initialized in dependency order, then the ledger upgrades.
package fsm

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/superfly/fsm"
)

// Register registers the bring-up FSM.
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[NetworkRequest, NetworkResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[NetworkRequest, NetworkResponse](manager, "network-bring-up").
		Start(StateTeardownPrior, m.handle(StateTeardownPrior, m.teardownPrior)).
		To(StateBuildCore, m.handle(StateBuildCore, m.buildCore)).
		To(StateBuildAPI, m.handle(StateBuildAPI, m.buildAPI)).
		To(StateStartCoreDB, m.handle(StateStartCoreDB, m.startCoreDB)).
		To(StateSettleCoreDB, m.handle(StateSettleCoreDB, m.settleCoreDB)).
		To(StateInitCoreDB, m.handle(StateInitCoreDB, m.initCoreDB)).
		To(StateStartCore, m.handle(StateStartCore, m.startCore)).
		To(StateExtractRootSeed, m.handle(StateExtractRootSeed, m.extractRootSeed)).
		To(StateInitCoreHistory, m.handle(StateInitCoreHistory, m.initCoreHistory)).
		To(StateStartAPIDB, m.handle(StateStartAPIDB, m.startAPIDB)).
		To(StateSettleAPIDB, m.handle(StateSettleAPIDB, m.settleAPIDB)).
		To(StateInitAPIDB, m.handle(StateInitAPIDB, m.initAPIDB)).
		To(StateStartAPI, m.handle(StateStartAPI, m.startAPI)).
		To(StateApplyBaseReserve, m.handle(StateApplyBaseReserve, m.applyBaseReserve)).
		To(StateApplyProtocolVersion, m.handle(StateApplyProtocolVersion, m.applyProtocolVersion)).
		To(StateReady, m.handle(StateReady, m.ready)).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

// Report summarizes one bring-up run. It never carries the seed.
type Report struct {
	RunID       string
	Completed   []string
	FailedState string
}

// Sequencer owns an fsm manager for the lifetime of a single run.
type Sequencer struct {
	Machine *Machine
	// StateDir is the parent of the scratch fsm store. Empty means os.TempDir.
	StateDir string
	// ShutdownTimeout bounds manager shutdown.
	ShutdownTimeout time.Duration
}

// NewSequencer returns a sequencer for m.
func NewSequencer(m *Machine) *Sequencer {
	return &Sequencer{Machine: m, ShutdownTimeout: 10 * time.Second}
}

// Run executes the machine to completion. The fsm store lives in a scratch
// directory removed before Run returns. On failure the handler's own error is
// returned, so callers can match it with errors.Is.
func (s *Sequencer) Run(ctx context.Context) (*Report, error) {
	dir, err := os.MkdirTemp(s.StateDir, "localnet-fsm-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsm state dir")
	}
	defer os.RemoveAll(dir)

	manager, err := fsm.New(fsm.Config{DBPath: dir})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(s.ShutdownTimeout)

	start, _, err := s.Machine.Register(ctx, manager)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	s.Machine.begin(runID)

	version, err := start(ctx, runID, fsm.NewRequest(&NetworkRequest{RunID: runID}, &NetworkResponse{}))
	if err != nil {
		s.Machine.finish(runID)
		return nil, errors.Wrap(err, "failed to start FSM")
	}

	waitErr := manager.Wait(ctx, version)
	report, cause := s.Machine.finish(runID)
	if cause != nil {
		return report, cause
	}
	if waitErr != nil {
		return report, errors.Wrap(waitErr, "network bring-up failed")
	}
	return report, nil
}
