package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kinecosystem/localnet/pkg/admin"
	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/executor"
	"github.com/kinecosystem/localnet/pkg/readiness"
	"github.com/kinecosystem/localnet/pkg/seed"
	"github.com/superfly/fsm"
)

// SeedEnv is the variable the api service reads the root account seed from.
const SeedEnv = "ROOT_ACCOUNT_SEED"

// Prerequisite is a step that must finish before any service starts.
type Prerequisite struct {
	State string
	Run   func(ctx context.Context) error
}

// Upgrader applies one ledger upgrade.
type Upgrader interface {
	Upgrade(ctx context.Context, u admin.Upgrade) error
}

// Settings tunes the bring-up.
type Settings struct {
	SettleDelay      time.Duration
	ReadinessProbe   bool
	ReadinessTimeout time.Duration
	// ProbeCommand runs inside a database container; exit zero means ready.
	ProbeCommand []string

	CoreInitArgs    []string
	CoreHistoryArgs []string
	APIInitArgs     []string
	SeedPattern     seed.Pattern

	BaseReserve     int
	ProtocolVersion int
	// UpgradeAttempts is how many times each upgrade call is issued.
	UpgradeAttempts int
}

// DefaultSettings returns the settings the stock composition expects.
func DefaultSettings() Settings {
	return Settings{
		SettleDelay:      2 * time.Second,
		ReadinessTimeout: time.Minute,
		ProbeCommand:     []string{"pg_isready", "-U", "postgres"},
		CoreInitArgs:     []string{"--newdb", "--forcescp"},
		CoreHistoryArgs:  []string{"--newhist", "cache"},
		APIInitArgs:      []string{"db", "init"},
		SeedPattern:      seed.DefaultPattern(),
		BaseReserve:      0,
		ProtocolVersion:  9,
		UpgradeAttempts:  2,
	}
}

// runState is the in-memory side of a run. The seed and captured output stay
// here and never reach the persisted fsm messages.
type runState struct {
	initOutput  string
	seed        string
	completed   []string
	failedState string
	err         error
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	project  *compose.Project
	admin    Upgrader
	prereqs  map[string]Prerequisite
	settings Settings

	mu   sync.Mutex
	runs map[string]*runState
}

// NewMachine creates a new FSM machine. prereqs bind the teardown and build
// states by name; a state without a prerequisite is a no-op.
func NewMachine(project *compose.Project, upgrader Upgrader, settings Settings, prereqs ...Prerequisite) *Machine {
	m := &Machine{
		project:  project,
		admin:    upgrader,
		prereqs:  make(map[string]Prerequisite, len(prereqs)),
		settings: settings,
		runs:     make(map[string]*runState),
	}
	for _, p := range prereqs {
		m.prereqs[p.State] = p
	}
	return m
}

func (m *Machine) begin(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = &runState{}
}

func (m *Machine) run(runID string) *runState {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		r = &runState{}
		m.runs[runID] = r
	}
	return r
}

// finish drops the run's in-memory state and reports it.
func (m *Machine) finish(runID string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	delete(m.runs, runID)
	if !ok {
		return &Report{RunID: runID}, nil
	}
	return &Report{RunID: runID, Completed: r.completed, FailedState: r.failedState}, r.err
}

type step func(ctx context.Context, r *runState) error

// handle adapts a step into an fsm transition. Steps are never retried: a
// failure aborts the machine and is kept for Sequencer.Run to return.
func (m *Machine) handle(state string, fn step) func(context.Context, *fsm.Request[NetworkRequest, NetworkResponse]) (*fsm.Response[NetworkResponse], error) {
	return func(ctx context.Context, req *fsm.Request[NetworkRequest, NetworkResponse]) (*fsm.Response[NetworkResponse], error) {
		runID := req.Msg.RunID
		slog.Info("fsm_state_"+state, "run_id", runID)

		resp := req.W.Msg
		if resp == nil {
			resp = &NetworkResponse{}
		}

		if retryCount := fsm.RetryFromContext(ctx); retryCount > 0 {
			return nil, fsm.Abort(fmt.Errorf("state %s is not retried", state))
		}

		r := m.run(runID)
		if err := fn(ctx, r); err != nil {
			slog.Error("fsm_state_failed", "run_id", runID, "state", state, "error", err)
			m.mu.Lock()
			r.failedState = state
			r.err = err
			m.mu.Unlock()
			resp.FailedState = state
			resp.ErrorMessage = err.Error()
			return nil, fsm.Abort(err)
		}

		m.mu.Lock()
		r.completed = append(r.completed, state)
		m.mu.Unlock()
		resp.Completed = append(resp.Completed, state)
		return fsm.NewResponse(resp), nil
	}
}

func (m *Machine) prerequisite(ctx context.Context, state string) error {
	p, ok := m.prereqs[state]
	if !ok || p.Run == nil {
		slog.Info("prerequisite_skipped", "state", state)
		return nil
	}
	return p.Run(ctx)
}

func (m *Machine) teardownPrior(ctx context.Context, _ *runState) error {
	return m.prerequisite(ctx, StateTeardownPrior)
}

func (m *Machine) buildCore(ctx context.Context, _ *runState) error {
	return m.prerequisite(ctx, StateBuildCore)
}

func (m *Machine) buildAPI(ctx context.Context, _ *runState) error {
	return m.prerequisite(ctx, StateBuildAPI)
}

func (m *Machine) startCoreDB(ctx context.Context, _ *runState) error {
	return m.project.Up(ctx, compose.ServiceCoreDB, nil)
}

func (m *Machine) settleCoreDB(ctx context.Context, _ *runState) error {
	return m.settle(ctx, compose.ServiceCoreDB)
}

// initCoreDB creates the ledger database. Its output is kept for seed
// extraction and not echoed.
func (m *Machine) initCoreDB(ctx context.Context, r *runState) error {
	res, err := m.project.Run(ctx, executor.HideBoth, compose.ServiceCore, m.settings.CoreInitArgs...)
	if err != nil {
		return err
	}
	m.mu.Lock()
	r.initOutput = res.Stdout
	m.mu.Unlock()
	return nil
}

func (m *Machine) startCore(ctx context.Context, _ *runState) error {
	return m.project.Up(ctx, compose.ServiceCore, nil)
}

func (m *Machine) extractRootSeed(_ context.Context, r *runState) error {
	m.mu.Lock()
	out := r.initOutput
	m.mu.Unlock()

	s, err := seed.Extract(out, m.settings.SeedPattern)
	if err != nil {
		return err
	}

	m.mu.Lock()
	r.seed = s
	r.initOutput = ""
	m.mu.Unlock()
	slog.Info("root_seed_extracted", "seed", seed.Redact(s))
	return nil
}

func (m *Machine) initCoreHistory(ctx context.Context, _ *runState) error {
	_, err := m.project.Run(ctx, executor.HideBoth, compose.ServiceCore, m.settings.CoreHistoryArgs...)
	return err
}

func (m *Machine) startAPIDB(ctx context.Context, _ *runState) error {
	return m.project.Up(ctx, compose.ServiceAPIDB, nil)
}

func (m *Machine) settleAPIDB(ctx context.Context, _ *runState) error {
	return m.settle(ctx, compose.ServiceAPIDB)
}

func (m *Machine) initAPIDB(ctx context.Context, _ *runState) error {
	_, err := m.project.Run(ctx, executor.HideStderr, compose.ServiceAPI, m.settings.APIInitArgs...)
	return err
}

func (m *Machine) startAPI(ctx context.Context, r *runState) error {
	m.mu.Lock()
	s := r.seed
	m.mu.Unlock()
	return m.project.Up(ctx, compose.ServiceAPI, map[string]string{SeedEnv: s})
}

func (m *Machine) applyBaseReserve(ctx context.Context, _ *runState) error {
	return m.upgrade(ctx, admin.BaseReserve(m.settings.BaseReserve))
}

func (m *Machine) applyProtocolVersion(ctx context.Context, _ *runState) error {
	return m.upgrade(ctx, admin.ProtocolVersion(m.settings.ProtocolVersion))
}

func (m *Machine) ready(_ context.Context, r *runState) error {
	m.mu.Lock()
	r.seed = ""
	m.mu.Unlock()
	slog.Info("network_ready", "dir", m.project.Dir)
	return nil
}

// settle waits for a freshly started database. The minimum delay always
// applies; the probe only when enabled.
func (m *Machine) settle(ctx context.Context, service string) error {
	opts := readiness.Options{MinDelay: m.settings.SettleDelay}
	var check readiness.Check
	if m.settings.ReadinessProbe && len(m.settings.ProbeCommand) > 0 {
		opts.Timeout = m.settings.ReadinessTimeout
		check = func(ctx context.Context) error {
			return m.project.Exec(ctx, service, m.settings.ProbeCommand...)
		}
	}
	return readiness.Wait(ctx, service, opts, check)
}

// upgrade issues u UpgradeAttempts times in a row.
func (m *Machine) upgrade(ctx context.Context, u admin.Upgrade) error {
	attempts := m.settings.UpgradeAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		slog.Info("ledger_upgrade", "upgrade", u.String(), "attempt", i+1)
		if err := m.admin.Upgrade(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
