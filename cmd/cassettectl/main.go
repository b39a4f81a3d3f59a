package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cassettectl",
	Short: "Operate the cassette repair service from the command line",
	Long: `cassettectl runs ticket reconciliation against the configured database,
inspects the status state machines and issues bearer tokens for local testing.
Configuration is read from the same environment variables as the API server.`,
	SilenceUsage: true,
}

var outputJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(transitionsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
