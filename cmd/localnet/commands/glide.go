package commands

import (
	"context"
	"fmt"

	"github.com/kinecosystem/localnet/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var glideDir string

var glideCmd = &cobra.Command{
	Use:     "download-dependency-tool",
	Aliases: []string{"glide"},
	Short:   "Download the glide binary into a directory",
	Long: `Downloads the glide release for this host into --dir (default: current
directory). Nothing is fetched when <dir>/glide already exists. Only linux
and darwin are supported.`,
	RunE: runGlide,
}

func init() {
	rootCmd.AddCommand(glideCmd)
	glideCmd.Flags().StringVar(&glideDir, "dir", ".", "Destination directory")
	glideCmd.Flags().String("os", "", "Target OS (defaults to this host)")
	glideCmd.Flags().String("arch", "amd64", "Target architecture")
	viper.BindPFlag("glide-os", glideCmd.Flags().Lookup("os"))
	viper.BindPFlag("glide-arch", glideCmd.Flags().Lookup("arch"))
}

func runGlide(cmd *cobra.Command, args []string) error {
	s, err := loadStack()
	if err != nil {
		return err
	}

	fmt.Println("📦 Downloading glide")
	res, err := s.downloader().Download(context.Background(), glideDir, s.glideOS(), s.cfg.GlideArch)
	if err != nil {
		return errors.Wrap(err, "download failed")
	}

	if res.Skipped {
		fmt.Printf("✅ glide already present at %s\n", res.Path)
		return nil
	}
	fmt.Printf("✅ glide installed at %s (%d bytes, sha256 %s)\n", res.Path, res.Size, res.SHA256)
	return nil
}
