package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/cassette-service/internal/transition"
)

var transitionsCmd = &cobra.Command{
	Use:   "transitions [kind] [state]",
	Short: "Print the legal next states of a state machine",
	Long: `Without a state, prints every state of the kind with its next states.
Kinds: ticket, cassette, repair_ticket, preventive_maintenance.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTransitions,
}

func runTransitions(_ *cobra.Command, args []string) error {
	kind, ok := transition.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown kind %q", args[0])
	}
	states, err := transition.States(kind)
	if err != nil {
		return err
	}
	if len(args) == 2 {
		states = []string{strings.ToUpper(args[1])}
	}

	table := make(map[string][]string, len(states))
	for _, state := range states {
		next, err := transition.AllowedNextStates(kind, state)
		if err != nil {
			return err
		}
		table[state] = next
	}
	if outputJSON {
		return printJSON(table)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tNEXT")
	for _, state := range states {
		next := strings.Join(table[state], ", ")
		if next == "" {
			next = "(terminal)"
		}
		fmt.Fprintf(w, "%s\t%s\n", state, next)
	}
	return w.Flush()
}
