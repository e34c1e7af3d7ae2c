package commands

import (
	"context"
	"os"
	"runtime"

	"github.com/kinecosystem/localnet/internal/config"
	"github.com/kinecosystem/localnet/pkg/admin"
	"github.com/kinecosystem/localnet/pkg/builder"
	"github.com/kinecosystem/localnet/pkg/checkout"
	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/executor"
	"github.com/kinecosystem/localnet/pkg/fsm"
	"github.com/kinecosystem/localnet/pkg/images"
	"github.com/kinecosystem/localnet/pkg/seed"
	"github.com/kinecosystem/localnet/pkg/teardown"
	"github.com/kinecosystem/localnet/pkg/tools"
)

// stack is the wired set of collaborators every command draws from.
type stack struct {
	cfg     *config.Config
	runner  executor.Runner
	project *compose.Project
}

func loadStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	binary, err := executor.ParseLine(cfg.ComposeBinary)
	if err != nil {
		return nil, errors.Wrap(err, "parse compose-binary")
	}

	runner := executor.NewExecRunner()
	return &stack{
		cfg:    cfg,
		runner: runner,
		project: &compose.Project{
			Runner: runner,
			Dir:    cfg.ImagesDir,
			File:   cfg.ComposeFile,
			Binary: binary,
			Sudo:   cfg.Sudo,
		},
	}, nil
}

// lister picks how images are listed: through `sudo docker images` when
// container commands need root, through the Engine API otherwise. The
// returned func releases it.
func (s *stack) lister() (images.Lister, func() error, error) {
	if s.cfg.Sudo {
		return &images.CommandLister{Runner: s.runner, Sudo: true}, func() error { return nil }, nil
	}
	lister, err := images.NewDockerLister(s.cfg.DockerHost)
	if err != nil {
		return nil, nil, err
	}
	return lister, lister.Close, nil
}

// builder wires the image builder; the returned func releases its lister.
func (s *stack) builder() (*builder.Builder, func() error, error) {
	lister, closeFn, err := s.lister()
	if err != nil {
		return nil, nil, err
	}
	return &builder.Builder{
		Project: s.project,
		Images:  lister,
		Cloner:  checkout.NewGitCloner(os.Stdout),
	}, closeFn, nil
}

func (s *stack) coreTarget() builder.BuildTarget {
	return builder.CoreTarget(s.cfg.CoreRepo, s.cfg.CoreBranch, s.cfg.CoreCheckout, s.cfg.CoreImage)
}

func (s *stack) apiTarget() builder.BuildTarget {
	return builder.APITarget(s.cfg.APIRepo, s.cfg.APIBranch, s.cfg.APICheckout, s.cfg.APIImage)
}

func (s *stack) apiOptions() builder.APIOptions {
	return builder.APIOptions{
		LDFlagsPackage: s.cfg.LDFlagsPackage,
		Version:        s.cfg.APIVersion,
		Output:         builder.DefaultAPIOutput,
		MainPackage:    builder.DefaultAPIMain,
		Vendor:         s.vendor,
	}
}

func (s *stack) downloader() *tools.Downloader {
	return tools.NewDownloader(s.cfg.GlideVersion)
}

// glideOS is the host OS unless overridden.
func (s *stack) glideOS() string {
	if s.cfg.GlideOS != "" {
		return s.cfg.GlideOS
	}
	return runtime.GOOS
}

func (s *stack) vendor(ctx context.Context, dir string) error {
	return tools.Vendor(ctx, s.runner, s.downloader(), dir, s.glideOS(), s.cfg.GlideArch)
}

func (s *stack) teardown() *teardown.Teardown {
	return &teardown.Teardown{
		Project:    s.project,
		Runner:     s.runner,
		CoreVolume: s.cfg.CoreVolume,
	}
}

func (s *stack) admin() *admin.Client {
	return admin.NewClient(s.cfg.AdminURL, nil)
}

// settings turns configuration into sequencer settings, splitting the
// configurable command lines into argv.
func (s *stack) settings() (fsm.Settings, error) {
	st := fsm.DefaultSettings()
	st.SettleDelay = s.cfg.SettleDelay
	st.ReadinessProbe = s.cfg.ReadinessProbe
	st.ReadinessTimeout = s.cfg.ReadinessTimeout
	st.BaseReserve = s.cfg.BaseReserve
	st.ProtocolVersion = s.cfg.ProtocolVersion
	st.UpgradeAttempts = s.cfg.UpgradeAttempts

	pattern := seed.DefaultPattern()
	pattern.Marker = s.cfg.SeedMarker
	pattern.Index = s.cfg.SeedIndex
	st.SeedPattern = pattern

	var err error
	if st.CoreInitArgs, err = executor.ParseLine(s.cfg.CoreInitFlags); err != nil {
		return st, errors.Wrap(err, "parse core-init-flags")
	}
	if st.CoreHistoryArgs, err = executor.ParseLine(s.cfg.CoreHistoryFlags); err != nil {
		return st, errors.Wrap(err, "parse core-history-flags")
	}
	if st.APIInitArgs, err = executor.ParseLine(s.cfg.APIInitCommand); err != nil {
		return st, errors.Wrap(err, "parse api-init-command")
	}
	return st, nil
}
