// Package checkout provides clone-if-absent semantics for source repositories.
package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	lerrors "github.com/kinecosystem/localnet/pkg/errors"
)

// Cloner makes sure a checkout of url at ref exists at path.
// It reports whether a clone was performed.
type Cloner interface {
	Ensure(ctx context.Context, url, ref, path string) (bool, error)
}

// GitCloner clones with go-git. Existence of path is the only idempotency
// key: an existing directory is never inspected or updated.
type GitCloner struct {
	Progress io.Writer
}

// NewGitCloner returns a cloner reporting progress to w (may be nil).
func NewGitCloner(w io.Writer) *GitCloner {
	return &GitCloner{Progress: w}
}

// Ensure clones url at ref into path unless path already exists. ref may be a
// branch, a tag or a full reference name.
func (c *GitCloner) Ensure(ctx context.Context, url, ref, path string) (bool, error) {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return false, lerrors.Wrapf(os.ErrExist, "checkout path %s is a file", path)
		}
		slog.Info("checkout_exists", "path", path)
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, lerrors.Wrapf(err, "stat checkout %s", path)
	}

	slog.Info("checkout_clone_start", "url", url, "ref", ref, "path", path)

	var lastErr error
	for _, name := range candidates(ref) {
		err := c.clone(ctx, url, name, path)
		if err == nil {
			slog.Info("checkout_clone_complete", "url", url, "ref", name.String(), "path", path)
			return true, nil
		}
		// A failed clone leaves a partial directory behind.
		os.RemoveAll(path)
		lastErr = err
		if !isMissingRef(err) {
			break
		}
		slog.Info("checkout_ref_not_found", "url", url, "ref", name.String())
	}

	slog.Error("checkout_clone_failed", "url", url, "ref", ref, "error", lastErr)
	return false, lerrors.Wrapf(lastErr, "clone %s at %s", url, ref)
}

func (c *GitCloner) clone(ctx context.Context, url string, ref plumbing.ReferenceName, path string) error {
	_, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: ref,
		SingleBranch:  true,
		Progress:      c.Progress,
	})
	return err
}

func candidates(ref string) []plumbing.ReferenceName {
	if ref == "" {
		return []plumbing.ReferenceName{plumbing.HEAD}
	}
	if strings.HasPrefix(ref, "refs/") {
		return []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	}
	return []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
}

func isMissingRef(err error) bool {
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	var noMatch git.NoMatchingRefSpecError
	return errors.As(err, &noMatch)
}
