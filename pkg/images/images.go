// Package images answers whether a build artifact is already present in the
// container runtime.
package images

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/kinecosystem/localnet/pkg/errors"
)

// Lister returns the identifiers of every image known to the runtime.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Exists reports whether any listed image identifier contains name.
// Matching is by substring so registry prefixes and tags do not matter; an
// unrelated image sharing the substring is accepted as a false positive.
func Exists(ctx context.Context, lister Lister, name string) (bool, error) {
	ids, err := lister.List(ctx)
	if err != nil {
		return false, errors.Wrap(err, "list images")
	}

	for _, id := range ids {
		if strings.Contains(id, name) {
			slog.Info("image_exists", "name", name, "match", id)
			return true, nil
		}
	}

	slog.Info("image_missing", "name", name)
	return false, nil
}

// DockerLister lists images through the Docker Engine API.
type DockerLister struct {
	cli *client.Client
}

// NewDockerLister connects to the daemon named by host, or by the DOCKER_*
// environment when host is empty.
func NewDockerLister(host string) (*DockerLister, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create docker client")
	}
	return &DockerLister{cli: cli}, nil
}

// List returns repo tags, or the image ID for untagged images.
func (d *DockerLister) List(ctx context.Context) ([]string, error) {
	summaries, err := d.cli.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return nil, errors.Wrap(err, "docker image list")
	}

	var ids []string
	for _, s := range summaries {
		if len(s.RepoTags) == 0 {
			ids = append(ids, s.ID)
			continue
		}
		ids = append(ids, s.RepoTags...)
	}
	return ids, nil
}

// Ping checks that the daemon is reachable.
func (d *DockerLister) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping docker daemon")
	}
	return nil
}

// Close releases the client's connections.
func (d *DockerLister) Close() error {
	return d.cli.Close()
}

// StaticLister serves a fixed image list.
type StaticLister []string

// List returns the fixed list.
func (s StaticLister) List(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
