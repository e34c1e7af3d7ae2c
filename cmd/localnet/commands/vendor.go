package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var vendorDir string

var vendorCmd = &cobra.Command{
	Use:     "vendor-dependencies",
	Aliases: []string{"vendor"},
	Short:   "Vendor Go dependencies with glide",
	RunE:    runVendor,
}

func init() {
	rootCmd.AddCommand(vendorCmd)
	vendorCmd.Flags().StringVar(&vendorDir, "dir", ".", "Project directory holding glide.yaml")
	vendorCmd.Flags().String("os", "", "Target OS for the glide binary (defaults to this host)")
	vendorCmd.Flags().String("arch", "amd64", "Target architecture for the glide binary")
}

func runVendor(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("os"); v != "" {
		s.cfg.GlideOS = v
	}
	if cmd.Flags().Changed("arch") {
		s.cfg.GlideArch, _ = cmd.Flags().GetString("arch")
	}

	fmt.Println("📦 Vendoring dependencies")
	if err := s.vendor(context.Background(), vendorDir); err != nil {
		return err
	}
	fmt.Println("✅ Dependencies vendored")
	return nil
}
