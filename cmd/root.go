package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/debpack/debpack/logx"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "debpack",
	Short: "Build Debian packages directly from a Cargo project",
	Long: `debpack turns a Cargo project with a [package.metadata.deb] table into a
binary Debian package, with no debian/ directory and no dpkg toolchain
required for assembly.`,

	Version: "2.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logx.SetVerbose(true)
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("manifest-path", "Cargo.toml", "Path to the Cargo.toml of the package to build")
}
