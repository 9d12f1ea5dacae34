// Package cmd provides the command-line interface for mmusim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mmusim",
	Short: "mmusim replays virtual address traces through a simulated MMU.",
	Long: `mmusim replays virtual address traces through a simulated MMU ` +
		`with a FIFO TLB, a flat page table and a first-fit frame ` +
		`allocator. Settings are read from flags, MMUSIM_* environment ` +
		`variables and a .env file, in that order of priority.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load MMUSIM_* settings from, if it exists")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
