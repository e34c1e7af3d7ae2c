package commands

import (
	"context"
	"fmt"

	"github.com/kinecosystem/localnet/pkg/fsm"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:     "bring-up-network",
	Aliases: []string{"network"},
	Short:   "Tear down, build and start the local network",
	Long: `Runs the full bring-up: teardown of any previous network, core and api
image builds, then each database and service started and initialized in order.
The root account seed printed by the core is passed to the api service, and
the base reserve and protocol version upgrades are applied last.`,
	RunE: runNetwork,
}

func init() {
	rootCmd.AddCommand(networkCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}
	settings, err := s.settings()
	if err != nil {
		return err
	}

	machine := fsm.NewMachine(s.project, s.admin(), settings,
		fsm.Prerequisite{State: fsm.StateTeardownPrior, Run: s.teardown().Run},
		fsm.Prerequisite{State: fsm.StateBuildCore, Run: func(ctx context.Context) error {
			return buildCore(ctx, s)
		}},
		fsm.Prerequisite{State: fsm.StateBuildAPI, Run: func(ctx context.Context) error {
			return buildAPI(ctx, s)
		}},
	)

	fmt.Println("🚀 Bringing up local network")
	report, err := fsm.NewSequencer(machine).Run(context.Background())
	if err != nil {
		if report != nil && report.FailedState != "" {
			return fmt.Errorf("%s: %w", report.FailedState, err)
		}
		return err
	}

	fmt.Printf("✅ Local network ready (run %s)\n", report.RunID)
	return nil
}
