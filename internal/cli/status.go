package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stackform-io/stackform/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status [resource]",
	Short: "Show recorded state",
	Long: `Print the recorded state: every resource with its status, remote ID, and
config fingerprint. With a resource name, print its full detail including
outputs and dependencies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := state.Open(statePath)
	if err != nil {
		return err
	}

	snapshot := store.Snapshot()

	if len(args) == 1 {
		name := args[0]
		rs, ok := snapshot[name]
		if !ok {
			return fmt.Errorf("resource %q is not recorded in state", name)
		}

		fmt.Printf("Name:         %s\n", rs.Name)
		fmt.Printf("Kind:         %s\n", rs.Kind)
		fmt.Printf("Status:       %s\n", rs.Status)
		fmt.Printf("Remote ID:    %s\n", rs.RemoteID)
		fmt.Printf("Config hash:  %s\n", rs.ConfigHash)
		fmt.Printf("Updated at:   %s\n", rs.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		if len(rs.Dependencies) > 0 {
			fmt.Println("Dependencies:")
			for _, dep := range rs.Dependencies {
				fmt.Printf("  - %s\n", dep)
			}
		}
		if len(rs.Outputs) > 0 {
			fmt.Println("Outputs:")
			keys := make([]string, 0, len(rs.Outputs))
			for k := range rs.Outputs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s = %s\n", k, rs.Outputs[k])
			}
		}
		return nil
	}

	fmt.Printf("State file: %s\n", statePath)
	fmt.Printf("Lineage:    %s\n", store.Lineage())
	fmt.Printf("Serial:     %d\n", store.Serial())

	if len(snapshot) == 0 {
		fmt.Println("\nNo resources recorded.")
		return nil
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\n%-20s %-10s %-10s %s\n", "NAME", "KIND", "STATUS", "REMOTE ID")
	for _, name := range names {
		rs := snapshot[name]
		fmt.Printf("%-20s %-10s %-10s %s\n", rs.Name, rs.Kind, rs.Status, rs.RemoteID)
	}
	return nil
}
