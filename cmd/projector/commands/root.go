// Package commands implements the projector binary's CLI.
package commands

import "github.com/spf13/cobra"

var (
	// Version is injected at build time.
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:           "vnas-projector",
	Short:         "Reconciles queued datafeed snapshots into controller/callsign/position sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string { return cfgFile }

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(Version)
		return nil
	},
}
