package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackform-io/stackform/internal/engine"
	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/stackfile"
	"github.com/stackform-io/stackform/internal/state"
)

var planOut string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what an apply would do",
	Long: `Compute and display the operations an apply would perform, without
touching any resource. Planning only reads the stack file and the state
file.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planOut, "out", "", "Write the plan as JSON to this file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	spec, err := stackfile.Load(stackPath)
	if err != nil {
		return err
	}

	store, err := state.Open(statePath)
	if err != nil {
		return err
	}

	plan, err := engine.BuildPlan(spec, store.Snapshot(), ir.ModeApply)
	if err != nil {
		return err
	}

	fmt.Printf("Plan for stack %q:\n\n", spec.Stack)
	renderPlan(plan)
	if !plan.HasChanges() {
		fmt.Println("\nNo changes. Stack is up to date.")
	}

	if planOut != "" {
		raw, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		raw = append(raw, '\n')
		if err := os.WriteFile(planOut, raw, 0o644); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOut)
	}
	return nil
}
