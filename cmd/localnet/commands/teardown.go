package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var teardownCmd = &cobra.Command{
	Use:     "teardown-network",
	Aliases: []string{"rm-network"},
	Short:   "Stop the local network and remove its containers, volumes and core state",
	RunE:    runTeardown,
}

func init() {
	rootCmd.AddCommand(teardownCmd)
}

func runTeardown(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}

	fmt.Println("🧹 Stopping local network and removing containers")
	if err := s.teardown().Run(context.Background()); err != nil {
		return err
	}
	fmt.Println("✅ Network removed")
	return nil
}
