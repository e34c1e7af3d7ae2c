// Package compose drives the service composition through the docker-compose
// CLI. It is the only place that knows how compose command lines are spelled.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/compose-spec/compose-go/v2/cli"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/kinecosystem/localnet/pkg/executor"
	lerrors "github.com/kinecosystem/localnet/pkg/errors"
)

// Service names the pipeline depends on.
const (
	ServiceCoreDB    = "core-db"
	ServiceCore      = "core"
	ServiceCoreBuild = "core-build"
	ServiceAPIDB     = "api-db"
	ServiceAPI       = "api"
	ServiceAPIBuild  = "api-build"
)

// RequiredServices lists every service the bring-up pipeline touches.
var RequiredServices = []string{
	ServiceCoreDB, ServiceCore, ServiceCoreBuild,
	ServiceAPIDB, ServiceAPI, ServiceAPIBuild,
}

// ErrMissingService is returned by Validate when the composition lacks a
// required service.
var ErrMissingService = errors.New("compose service missing")

// Project is one compose project rooted at Dir.
type Project struct {
	Runner executor.Runner
	// Dir is the working directory of every compose invocation.
	Dir string
	// File is an optional compose file, relative to Dir.
	File string
	// Binary is the compose executable, e.g. "docker-compose" or "docker compose".
	Binary []string
	Sudo   bool
}

// Up starts service detached. env is exported to the compose process so the
// composition can interpolate it.
func (p *Project) Up(ctx context.Context, service string, env map[string]string) error {
	_, err := p.run(ctx, executor.HideStderr, env, "up", "-d", service)
	return lerrors.Wrapf(err, "start %s", service)
}

// Run executes a one-shot task container in the foreground and returns its
// output.
func (p *Project) Run(ctx context.Context, mode executor.Mode, service string, args ...string) (*executor.Result, error) {
	res, err := p.run(ctx, mode, nil, append([]string{"run", service}, args...)...)
	if err != nil {
		return nil, lerrors.Wrapf(err, "run %s", service)
	}
	return res, nil
}

// Exec runs a command inside the running container of service.
func (p *Project) Exec(ctx context.Context, service string, args ...string) error {
	_, err := p.run(ctx, executor.HideBoth, nil, append([]string{"exec", "-T", service}, args...)...)
	return err
}

// Build builds the image of service.
func (p *Project) Build(ctx context.Context, service string) error {
	_, err := p.run(ctx, executor.Stream, nil, "build", service)
	return lerrors.Wrapf(err, "build %s", service)
}

// Down stops every service and removes containers and volumes.
func (p *Project) Down(ctx context.Context) error {
	_, err := p.run(ctx, executor.HideStderr, nil, "down", "-v")
	return lerrors.Wrap(err, "compose down")
}

func (p *Project) run(ctx context.Context, mode executor.Mode, env map[string]string, args ...string) (*executor.Result, error) {
	return p.Runner.Run(ctx, executor.Command{
		Args: p.Args(len(env) > 0, args...),
		Dir:  p.Dir,
		Env:  env,
		Mode: mode,
	})
}

// ProjectName is the name compose gives the project: COMPOSE_PROJECT_NAME
// when set, otherwise the normalized base name of Dir.
func (p *Project) ProjectName() string {
	if name := os.Getenv("COMPOSE_PROJECT_NAME"); name != "" {
		return loader.NormalizeProjectName(name)
	}
	dir := p.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return loader.NormalizeProjectName(filepath.Base(dir))
}

// ImageName is the name compose tags a built service image with when the
// composition does not pin one. The standalone docker-compose binary joins
// project and service with "_", the docker CLI plugin with "-".
func (p *Project) ImageName(service string) string {
	sep := "_"
	if len(p.Binary) > 1 && p.Binary[0] == "docker" && p.Binary[1] == "compose" {
		sep = "-"
	}
	return p.ProjectName() + sep + service
}

// Args renders a full compose command line.
func (p *Project) Args(withEnv bool, args ...string) []string {
	var out []string
	if p.Sudo {
		out = append(out, "sudo")
		if withEnv {
			out = append(out, "-E")
		}
	}

	binary := p.Binary
	if len(binary) == 0 {
		binary = []string{"docker-compose"}
	}
	out = append(out, binary...)

	if p.File != "" {
		out = append(out, "-f", p.File)
	}
	return append(out, args...)
}

// Validate loads the composition and checks that every required service is
// defined.
func (p *Project) Validate(ctx context.Context, required ...string) error {
	var files []string
	if p.File != "" {
		files = append(files, filepath.Join(p.Dir, p.File))
	}

	opts, err := cli.NewProjectOptions(files,
		cli.WithWorkingDirectory(p.Dir),
		cli.WithOsEnv,
		cli.WithDefaultConfigPath,
	)
	if err != nil {
		return lerrors.Wrap(err, "compose project options")
	}

	project, err := opts.LoadProject(ctx)
	if err != nil {
		return lerrors.Wrapf(err, "load compose project in %s", p.Dir)
	}

	for _, name := range required {
		if _, ok := project.Services[name]; !ok {
			return fmt.Errorf("%w: %q is not defined in %s", ErrMissingService, name, p.Dir)
		}
	}
	return nil
}
