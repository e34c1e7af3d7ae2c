package commands

import (
	"context"
	"fmt"

	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/spf13/cobra"
)

var buildCoreCmd = &cobra.Command{
	Use:     "build-primary-image",
	Aliases: []string{"build-core"},
	Short:   "Build the core image unless it already exists",
	RunE:    runBuildCore,
}

var buildAPICmd = &cobra.Command{
	Use:     "build-secondary-image",
	Aliases: []string{"build-api"},
	Short:   "Build the api image unless it already exists",
	Long: `Clones the api repository if needed, vendors its dependencies, compiles
the api binary with build time and version stamped in, and packages the image.`,
	RunE: runBuildAPI,
}

func init() {
	rootCmd.AddCommand(buildCoreCmd)
	rootCmd.AddCommand(buildAPICmd)
	buildAPICmd.Flags().String("version", "", "Version stamped into the api binary (defaults to api-version)")
}

func runBuildCore(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}
	return buildCore(context.Background(), s)
}

func runBuildAPI(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("version"); v != "" {
		s.cfg.APIVersion = v
	}
	return buildAPI(context.Background(), s)
}

func buildCore(ctx context.Context, s *stack) error {
	b, closeFn, err := s.builder()
	if err != nil {
		return errors.Wrap(err, "docker client failed")
	}
	defer closeFn()

	fmt.Println("🔨 Building core image")
	if err := b.Build(ctx, s.coreTarget(), b.CorePreBuild()); err != nil {
		return err
	}
	fmt.Println("✅ Core image ready")
	return nil
}

func buildAPI(ctx context.Context, s *stack) error {
	b, closeFn, err := s.builder()
	if err != nil {
		return errors.Wrap(err, "docker client failed")
	}
	defer closeFn()

	fmt.Println("🔨 Building api image")
	if err := b.Build(ctx, s.apiTarget(), b.APIPreBuild(s.apiOptions())); err != nil {
		return err
	}
	fmt.Println("✅ Api image ready")
	return nil
}
