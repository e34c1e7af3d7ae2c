// Package teardown removes a local network and the core state persisted on
// its mounted volume.
package teardown

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/executor"
)

// Paths under the core volume that survive `compose down -v` because they are
// bind mounts.
const (
	BucketsDir = "opt/stellar-core/buckets"
	LogGlob    = "opt/stellar-core/*.log"
	TmpDir     = "tmp"
)

// Teardown stops the network and clears the core's on-disk state.
type Teardown struct {
	Project *compose.Project
	Runner  executor.Runner
	// CoreVolume is the core's bind-mounted root, relative to Project.Dir.
	CoreVolume string
}

// Run stops services, drops volumes, and deletes the bucket directory, log
// files and temp directory. Absent paths are not an error; any failing
// command is.
func (t *Teardown) Run(ctx context.Context) error {
	slog.Info("teardown_start", "dir", t.Project.Dir)

	if err := t.Project.Down(ctx); err != nil {
		return err
	}

	if err := t.remove(ctx, "-rf", filepath.Join(t.CoreVolume, BucketsDir)); err != nil {
		return err
	}

	logs, err := filepath.Glob(filepath.Join(t.Project.Dir, t.CoreVolume, LogGlob))
	if err != nil {
		return errors.Wrap(err, "match core log files")
	}
	rel := make([]string, 0, len(logs))
	for _, l := range logs {
		r, err := filepath.Rel(t.Project.Dir, l)
		if err != nil {
			return errors.Wrap(err, "relative log path")
		}
		rel = append(rel, r)
	}
	if len(rel) > 0 {
		if err := t.remove(ctx, "-f", rel...); err != nil {
			return err
		}
	}

	if err := t.remove(ctx, "-rf", filepath.Join(t.CoreVolume, TmpDir)); err != nil {
		return err
	}

	slog.Info("teardown_complete", "dir", t.Project.Dir, "logs_removed", len(rel))
	return nil
}

// remove shells out to rm because the volume's files are owned by the
// containers' root user. It escalates exactly when compose does.
func (t *Teardown) remove(ctx context.Context, flag string, paths ...string) error {
	args := []string{"rm", flag}
	if t.Project.Sudo {
		args = append([]string{"sudo"}, args...)
	}
	_, err := t.Runner.Run(ctx, executor.Command{
		Args: append(args, paths...),
		Dir:  t.Project.Dir,
		Mode: executor.HideStderr,
	})
	return errors.Wrapf(err, "remove %v", paths)
}
