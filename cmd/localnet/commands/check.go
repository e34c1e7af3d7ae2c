package commands

import (
	"context"
	"fmt"

	"github.com/kinecosystem/localnet/pkg/builder"
	"github.com/kinecosystem/localnet/pkg/compose"
	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/images"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the compose project and the Docker daemon",
	Long: `Loads the compose project and confirms it defines every service the
bring-up uses, then pings the Docker daemon and reports which images exist.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if err := s.project.Validate(ctx, compose.RequiredServices...); err != nil {
		return err
	}
	fmt.Printf("✅ Compose project in %s defines all %d services\n", s.project.Dir, len(compose.RequiredServices))

	lister, closeFn, err := s.lister()
	if err != nil {
		return errors.Wrap(err, "docker client failed")
	}
	defer closeFn()

	if d, ok := lister.(*images.DockerLister); ok {
		err = d.Ping(ctx)
	} else {
		_, err = lister.List(ctx)
	}
	if err != nil {
		return errors.Wrap(err, "docker daemon unreachable")
	}
	fmt.Println("✅ Docker daemon reachable")

	b := &builder.Builder{Project: s.project}
	for _, name := range []string{b.ImageName(s.coreTarget()), b.ImageName(s.apiTarget())} {
		ok, err := images.Exists(ctx, lister, name)
		if err != nil {
			return err
		}
		status := "missing"
		if ok {
			status = "present"
		}
		fmt.Printf("   %-24s %s\n", name, status)
	}
	return nil
}
