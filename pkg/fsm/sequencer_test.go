package fsm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kinecosystem/localnet/pkg/admin"
	"github.com/kinecosystem/localnet/pkg/builder"
	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/executor"
	"github.com/kinecosystem/localnet/pkg/executor/executortest"
	"github.com/kinecosystem/localnet/pkg/images"
	"github.com/kinecosystem/localnet/pkg/seed"
	"github.com/kinecosystem/localnet/pkg/teardown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coreLog = "Starting...\nRoot account seed abc123XYZ extra\nDone\n"

var fixedTime = time.Date(2018, 5, 10, 9, 47, 14, 0, time.UTC)

type noteCloner struct {
	rec *executortest.Recorder
}

func (c *noteCloner) Ensure(ctx context.Context, url, ref, path string) (bool, error) {
	c.rec.Note(fmt.Sprintf("clone %s -> %s", url, filepath.Base(path)))
	return true, nil
}

type env struct {
	rec      *executortest.Recorder
	dir      string
	settings Settings
	// present makes both service images show up in the image list.
	present  bool
	admin    *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		rec:      executortest.NewRecorder(),
		dir:      t.TempDir(),
		settings: DefaultSettings(),
	}
	e.settings.SettleDelay = 0
	e.admin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.rec.Note("GET " + r.URL.RequestURI())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(e.admin.Close)
	return e
}

func (e *env) sequencer(t *testing.T) *Sequencer {
	project := &compose.Project{Runner: e.rec, Dir: e.dir}
	var listed images.StaticLister
	if e.present {
		listed = images.StaticLister{
			project.ImageName(compose.ServiceCore) + ":latest",
			project.ImageName(compose.ServiceAPI) + ":latest",
		}
	}
	b := &builder.Builder{
		Project: project,
		Images:  listed,
		Cloner:  &noteCloner{rec: e.rec},
	}
	apiOpts := builder.APIOptions{
		LDFlagsPackage: builder.DefaultLDFlagsPackage,
		Version:        "v1",
		Output:         builder.DefaultAPIOutput,
		MainPackage:    builder.DefaultAPIMain,
		Vendor: func(ctx context.Context, dir string) error {
			e.rec.Note("vendor " + filepath.Base(dir))
			return nil
		},
		Now: func() time.Time { return fixedTime },
	}
	td := &teardown.Teardown{Project: project, Runner: e.rec, CoreVolume: "volumes/stellar-core"}
	core := builder.CoreTarget(builder.DefaultCoreRepo, builder.DefaultCoreBranch, builder.DefaultCoreCheckout, "")
	api := builder.APITarget(builder.DefaultAPIRepo, builder.DefaultAPIBranch, builder.DefaultAPICheckout, "")

	m := NewMachine(project, admin.NewClient(e.admin.URL, e.admin.Client()), e.settings,
		Prerequisite{State: StateTeardownPrior, Run: td.Run},
		Prerequisite{State: StateBuildCore, Run: func(ctx context.Context) error {
			return b.Build(ctx, core, b.CorePreBuild())
		}},
		Prerequisite{State: StateBuildAPI, Run: func(ctx context.Context) error {
			return b.Build(ctx, api, b.APIPreBuild(apiOpts))
		}},
	)
	s := NewSequencer(m)
	s.StateDir = t.TempDir()
	return s
}

func TestSequencer_FullOrder(t *testing.T) {
	e := newEnv(t)
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: coreLog}, nil)

	report, err := e.sequencer(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, States, report.Completed)
	assert.Empty(t, report.FailedState)
	assert.NotEmpty(t, report.RunID)

	script := builder.GoBuildScript(builder.DefaultLDFlagsPackage, fixedTime, "v1", builder.DefaultAPIOutput, builder.DefaultAPIMain)
	want := []string{
		"docker-compose down -v",
		"rm -rf volumes/stellar-core/opt/stellar-core/buckets",
		"rm -rf volumes/stellar-core/tmp",
		"clone " + builder.DefaultCoreRepo + " -> stellar-core-git",
		"docker-compose build core-build",
		"docker-compose run core-build",
		"docker-compose build core",
		"clone " + builder.DefaultAPIRepo + " -> go-git",
		"vendor go-git",
		"docker-compose run api-build bash -c " + script,
		"docker-compose build api",
		"docker-compose up -d core-db",
		"docker-compose run core --newdb --forcescp",
		"docker-compose up -d core",
		"docker-compose run core --newhist cache",
		"docker-compose up -d api-db",
		"docker-compose run api db init",
		"docker-compose up -d api",
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&basereserve=0",
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&basereserve=0",
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&protocolversion=9",
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&protocolversion=9",
	}
	assert.Equal(t, want, e.rec.Lines())
}

func TestSequencer_SkipsBuildsForPresentImages(t *testing.T) {
	e := newEnv(t)
	e.present = true
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: coreLog}, nil)

	_, err := e.sequencer(t).Run(context.Background())
	require.NoError(t, err)

	for _, line := range e.rec.Lines() {
		assert.NotContains(t, line, "build")
		assert.NotContains(t, line, "clone")
	}
}

func TestSequencer_ThreadsSeedIntoAPIStart(t *testing.T) {
	e := newEnv(t)
	e.present = true
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: coreLog}, nil)

	_, err := e.sequencer(t).Run(context.Background())
	require.NoError(t, err)

	var started *executor.Command
	for _, c := range e.rec.Commands() {
		if c.String() == "docker-compose up -d api" {
			c := c
			started = &c
		}
	}
	require.NotNil(t, started)
	assert.Equal(t, map[string]string{SeedEnv: "abc123XYZ"}, started.Env)
}

func TestSequencer_MissingSeedHalts(t *testing.T) {
	e := newEnv(t)
	e.present = true
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: "Starting...\nDone\n"}, nil)

	report, err := e.sequencer(t).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, seed.ErrSeedNotFound)
	assert.NotErrorIs(t, err, executor.ErrCommandFailed)
	require.NotNil(t, report)
	assert.Equal(t, StateExtractRootSeed, report.FailedState)

	lines := e.rec.Lines()
	assert.Equal(t, "docker-compose up -d core", lines[len(lines)-1])
}

func TestSequencer_CommandFailureHalts(t *testing.T) {
	e := newEnv(t)
	e.present = true
	failure := &executor.CommandError{Args: []string{"docker-compose", "run", "api", "db", "init"}, ExitCode: 1, Stderr: "db locked"}
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: coreLog}, nil)
	e.rec.On("docker-compose run api db init", nil, failure)

	report, err := e.sequencer(t).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrCommandFailed)

	var cmdErr *executor.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "db locked", cmdErr.Stderr)
	assert.Equal(t, StateInitAPIDB, report.FailedState)

	lines := e.rec.Lines()
	assert.Equal(t, "docker-compose run api db init", lines[len(lines)-1])
	for _, line := range lines {
		assert.NotContains(t, line, "GET ")
	}
}

func TestSequencer_TeardownFailureStopsEverything(t *testing.T) {
	e := newEnv(t)
	e.rec.On("docker-compose down", nil, &executor.CommandError{Args: []string{"docker-compose", "down", "-v"}, ExitCode: 1})

	report, err := e.sequencer(t).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrCommandFailed)
	assert.Equal(t, StateTeardownPrior, report.FailedState)
	assert.Equal(t, []string{"docker-compose down -v"}, e.rec.Lines())
}

func TestSequencer_ReadinessProbeAndSingleAttempt(t *testing.T) {
	e := newEnv(t)
	e.present = true
	e.settings.ReadinessProbe = true
	e.settings.ReadinessTimeout = time.Second
	e.settings.UpgradeAttempts = 1
	e.rec.On("docker-compose run core --newdb", &executor.Result{Stdout: coreLog}, nil)

	_, err := e.sequencer(t).Run(context.Background())
	require.NoError(t, err)

	lines := e.rec.Lines()
	assert.Contains(t, lines, "docker-compose exec -T core-db pg_isready -U postgres")
	assert.Contains(t, lines, "docker-compose exec -T api-db pg_isready -U postgres")

	var upgrades int
	for _, line := range lines {
		if len(line) > 4 && line[:4] == "GET " {
			upgrades++
		}
	}
	assert.Equal(t, 2, upgrades)
}

func TestMachine_UpgradeTransportErrorIsFatal(t *testing.T) {
	m := NewMachine(&compose.Project{Runner: executortest.NewRecorder()}, admin.NewClient("http://127.0.0.1:1", nil), DefaultSettings())
	err := m.applyBaseReserve(context.Background(), &runState{})
	assert.Error(t, err)
}

func TestMachine_ExtractRootSeedClearsCapturedOutput(t *testing.T) {
	m := NewMachine(&compose.Project{}, nil, DefaultSettings())
	r := &runState{initOutput: coreLog}
	require.NoError(t, m.extractRootSeed(context.Background(), r))
	assert.Equal(t, "abc123XYZ", r.seed)
	assert.Empty(t, r.initOutput)
}
