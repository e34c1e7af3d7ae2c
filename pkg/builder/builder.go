// Package builder produces the core and api runtime images.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kinecosystem/localnet/pkg/checkout"
	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/executor"
	"github.com/kinecosystem/localnet/pkg/images"
)

// BuildTarget identifies one image-build job.
type BuildTarget struct {
	Name    string
	RepoURL string
	Branch  string
	// CheckoutPath is relative to the compose project directory.
	CheckoutPath string
	// ImageSubstring identifies the built image in the runtime's image list.
	// Empty means the compose default name of ImageService.
	ImageSubstring string
	// BuildService compiles the artifact; ImageService packages it.
	BuildService string
	ImageService string
}

// PreBuild runs between checkout and image packaging.
type PreBuild func(ctx context.Context, t BuildTarget) error

// Builder builds targets against one compose project.
type Builder struct {
	Project *compose.Project
	Images  images.Lister
	Cloner  checkout.Cloner
}

// Build makes sure the target's image exists. A present image short-circuits
// with no clone and no build.
func (b *Builder) Build(ctx context.Context, t BuildTarget, pre PreBuild) error {
	slog.Info("build_start", "target", t.Name)

	name := b.ImageName(t)
	exists, err := images.Exists(ctx, b.Images, name)
	if err != nil {
		return errors.Wrapf(err, "check %s image", t.Name)
	}
	if exists {
		slog.Info("build_skipped", "target", t.Name, "image", name)
		return nil
	}

	path := filepath.Join(b.Project.Dir, t.CheckoutPath)
	if _, err := b.Cloner.Ensure(ctx, t.RepoURL, t.Branch, path); err != nil {
		return errors.Wrapf(err, "checkout %s", t.Name)
	}

	if pre != nil {
		if err := pre(ctx, t); err != nil {
			return errors.Wrapf(err, "pre-build %s", t.Name)
		}
	}

	if err := b.Project.Build(ctx, t.ImageService); err != nil {
		return errors.Wrapf(err, "package %s", t.Name)
	}

	slog.Info("build_complete", "target", t.Name)
	return nil
}

// ImageName is the identifier Build looks for in the image list.
func (b *Builder) ImageName(t BuildTarget) string {
	if t.ImageSubstring != "" {
		return t.ImageSubstring
	}
	return b.Project.ImageName(t.ImageService)
}

// CorePreBuild builds the toolchain image and runs the compile container.
func (b *Builder) CorePreBuild() PreBuild {
	return func(ctx context.Context, t BuildTarget) error {
		if err := b.Project.Build(ctx, t.BuildService); err != nil {
			return err
		}
		_, err := b.Project.Run(ctx, executor.Stream, t.BuildService)
		return err
	}
}

// APIOptions parameterise the api compile step.
type APIOptions struct {
	// LDFlagsPackage receives buildTime and version at link time.
	LDFlagsPackage string
	Version        string
	Output         string
	MainPackage    string
	// Vendor fetches dependencies in the checkout before compiling.
	Vendor func(ctx context.Context, dir string) error
	Now    func() time.Time
}

// APIPreBuild vendors dependencies and compiles the api binary with build
// metadata stamped in.
func (b *Builder) APIPreBuild(opts APIOptions) PreBuild {
	return func(ctx context.Context, t BuildTarget) error {
		if opts.Vendor != nil {
			if err := opts.Vendor(ctx, filepath.Join(b.Project.Dir, t.CheckoutPath)); err != nil {
				return err
			}
		}

		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		script := GoBuildScript(opts.LDFlagsPackage, now().UTC(), opts.Version, opts.Output, opts.MainPackage)

		_, err := b.Project.Run(ctx, executor.Stream, t.BuildService, "bash", "-c", script)
		return err
	}
}

// GoBuildScript renders the go build invocation run inside the build container.
func GoBuildScript(pkg string, buildTime time.Time, version, output, main string) string {
	ldflags := fmt.Sprintf(`-X "%s.buildTime=%s" -X "%s.version=%s"`,
		pkg, buildTime.Format(time.RFC3339), pkg, version)
	return fmt.Sprintf(`go build -ldflags='%s' -o %s %s`, ldflags, output, main)
}
