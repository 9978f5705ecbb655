package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackform-io/stackform/internal/engine"
	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/stackfile"
	"github.com/stackform-io/stackform/internal/state"
)

var (
	applyAutoApprove     bool
	applyContinueOnError bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the stack declaration",
	Long: `Diff the stack declaration against recorded state and perform the
resulting operations. Unchanged resources are not touched; re-running after
a failure resumes from the recorded state.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan before applying")
	applyCmd.Flags().BoolVar(&applyContinueOnError, "continue-on-error", false, "Keep going past failures, skipping dependents of the failed resource")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec, err := stackfile.Load(stackPath)
	if err != nil {
		return err
	}

	store, err := state.Open(statePath)
	if err != nil {
		return err
	}
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	plan, err := engine.BuildPlan(spec, store.Snapshot(), ir.ModeApply)
	if err != nil {
		return err
	}

	if !plan.HasChanges() {
		fmt.Println("No changes. Stack is up to date.")
		return nil
	}

	fmt.Printf("Stackform will perform the following actions for stack %q:\n\n", spec.Stack)
	renderPlan(plan)

	if !applyAutoApprove {
		if !confirm("Do you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	client, err := loadClient(ctx, spec)
	if err != nil {
		return err
	}

	fmt.Println()
	executor := engine.NewExecutor(client, store,
		engine.WithReporter(consoleReporter{}),
		engine.WithContinueOnError(applyContinueOnError),
	)
	if _, err := executor.Run(ctx, plan, spec); err != nil {
		return err
	}

	if err := store.IncrementSerial(); err != nil {
		return err
	}
	fmt.Printf("\nApply complete. Resources: %d added, %d changed, %d destroyed.\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete)
	return nil
}
