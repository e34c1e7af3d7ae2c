package teardown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/executor"
	"github.com/kinecosystem/localnet/pkg/executor/executortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTeardown(t *testing.T, rec *executortest.Recorder, sudo bool) *Teardown {
	t.Helper()
	dir := t.TempDir()
	return &Teardown{
		Project:    &compose.Project{Runner: rec, Dir: dir, Sudo: sudo},
		Runner:     rec,
		CoreVolume: "volumes/stellar-core",
	}
}

func TestTeardown_CleanEnvironment(t *testing.T) {
	rec := executortest.NewRecorder()
	td := newTeardown(t, rec, true)

	require.NoError(t, td.Run(context.Background()))
	assert.Equal(t, []string{
		"sudo docker-compose down -v",
		"sudo rm -rf volumes/stellar-core/opt/stellar-core/buckets",
		"sudo rm -rf volumes/stellar-core/tmp",
	}, rec.Lines())
}

func TestTeardown_RemovesLogFiles(t *testing.T) {
	rec := executortest.NewRecorder()
	td := newTeardown(t, rec, false)

	core := filepath.Join(td.Project.Dir, "volumes/stellar-core/opt/stellar-core")
	require.NoError(t, os.MkdirAll(core, 0755))
	for _, name := range []string{"stellar-core.log", "stellar-core.1.log", "stellar-core.cfg"} {
		require.NoError(t, os.WriteFile(filepath.Join(core, name), nil, 0644))
	}

	require.NoError(t, td.Run(context.Background()))
	assert.Equal(t, []string{
		"docker-compose down -v",
		"rm -rf volumes/stellar-core/opt/stellar-core/buckets",
		"rm -f volumes/stellar-core/opt/stellar-core/stellar-core.1.log volumes/stellar-core/opt/stellar-core/stellar-core.log",
		"rm -rf volumes/stellar-core/tmp",
	}, rec.Lines())

	for _, cmd := range rec.Commands() {
		assert.Equal(t, td.Project.Dir, cmd.Dir)
	}
}

func TestTeardown_DownFailureStops(t *testing.T) {
	rec := executortest.NewRecorder().On("docker-compose down", nil, &executor.CommandError{ExitCode: 1})
	td := newTeardown(t, rec, false)

	err := td.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, executor.ErrCommandFailed))
	assert.Equal(t, []string{"docker-compose down -v"}, rec.Lines())
}

func TestTeardown_RemovalFollowsProjectSudo(t *testing.T) {
	rec := executortest.NewRecorder()
	td := newTeardown(t, rec, false)
	td.Project.Sudo = true

	require.NoError(t, td.Run(context.Background()))
	for _, line := range rec.Lines() {
		assert.True(t, strings.HasPrefix(line, "sudo "), line)
	}
}
