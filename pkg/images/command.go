package images

import (
	"context"
	"strings"

	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/executor"
)

// listFormat prints one image per line as "<repo>:<tag> <id>".
const listFormat = "{{.Repository}}:{{.Tag}} {{.ID}}"

// untagged is what the docker CLI prints for an image without a repo tag.
const untagged = "<none>:<none>"

// CommandLister lists images through the docker CLI, so the listing can run
// under sudo like every other container command.
type CommandLister struct {
	Runner executor.Runner
	// Binary is the docker executable. Empty means "docker".
	Binary []string
	Sudo   bool
}

// Args renders the listing command line.
func (c *CommandLister) Args() []string {
	var args []string
	if c.Sudo {
		args = append(args, "sudo")
	}
	binary := c.Binary
	if len(binary) == 0 {
		binary = []string{"docker"}
	}
	args = append(args, binary...)
	return append(args, "images", "--all", "--format", listFormat)
}

// List returns repo tags, or the image ID for untagged images.
func (c *CommandLister) List(ctx context.Context) ([]string, error) {
	res, err := c.Runner.Run(ctx, executor.Command{
		Args: c.Args(),
		Mode: executor.HideBoth,
	})
	if err != nil {
		return nil, errors.Wrap(err, "docker images")
	}

	var ids []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		switch {
		case len(fields) == 0:
		case fields[0] == untagged && len(fields) > 1:
			ids = append(ids, fields[1])
		default:
			ids = append(ids, fields[0])
		}
	}
	return ids, nil
}
