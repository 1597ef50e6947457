// Package cli wires the translatd commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "translatd",
	Short: "Local translation relay for LLM providers",
	Long: `translatd relays text translation requests from a local browser UI to
Gemini and OpenAI models, remembers which models actually worked, and manages
its own background server process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(c *cobra.Command, args []string) error {
		return c.Help()
	},
}

// Execute runs the CLI. Errors print to stderr and exit non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "path to config file")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
}
