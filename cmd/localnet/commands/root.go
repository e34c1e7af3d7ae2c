package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "localnet",
	Short: "Local ledger network bootstrapper",
	Long: `Builds the core and api images from source, brings up the local network
in dependency order, and applies the initial ledger upgrades.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("images-dir", "images", "Directory holding the compose project")
	flags.String("compose-file", "", "Compose file relative to images-dir")
	flags.String("compose-binary", "docker-compose", "Compose command, e.g. \"docker compose\"")
	flags.Bool("sudo", true, "Run compose and cleanup commands through sudo")
	flags.String("docker-host", "", "Docker daemon address (defaults to DOCKER_HOST)")
	flags.String("admin-url", "http://localhost:11626", "Core admin endpoint")
	flags.Duration("settle-delay", 2*time.Second, "Minimum wait after starting a database")
	flags.Bool("readiness-probe", false, "Poll databases with pg_isready after the settle delay")
	flags.Int("upgrade-attempts", 2, "Times each ledger upgrade call is issued")
	flags.String("glide-version", "v0.13.2", "Dependency tool release")

	for _, name := range []string{
		"images-dir", "compose-file", "compose-binary", "sudo", "docker-host",
		"admin-url", "settle-delay", "readiness-probe", "upgrade-attempts", "glide-version",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}
