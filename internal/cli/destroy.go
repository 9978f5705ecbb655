package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/stackform-io/stackform/internal/engine"
	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/stackfile"
	"github.com/stackform-io/stackform/internal/state"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete every recorded resource",
	Long: `Delete all resources recorded in state, in reverse dependency order.
Resources that are already gone remotely are treated as successfully
deleted.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Destroy plans are built purely from state, so a missing stack file is
	// not fatal; the region must then come from --region.
	spec, err := stackfile.Load(stackPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		spec = nil
	}

	store, err := state.Open(statePath)
	if err != nil {
		return err
	}
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	plan, err := engine.BuildPlan(spec, store.Snapshot(), ir.ModeDestroy)
	if err != nil {
		return err
	}

	if !plan.HasChanges() {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}

	if spec != nil {
		fmt.Printf("Stackform will destroy the following resources of stack %q:\n\n", spec.Stack)
	} else {
		fmt.Printf("Stackform will destroy the following resources recorded in %s:\n\n", statePath)
	}
	renderPlan(plan)

	if !destroyAutoApprove {
		if !confirm("Do you really want to destroy these resources?") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	client, err := loadClient(ctx, spec)
	if err != nil {
		return err
	}

	fmt.Println()
	executor := engine.NewExecutor(client, store, engine.WithReporter(consoleReporter{}))
	if _, err := executor.Run(ctx, plan, spec); err != nil {
		return err
	}

	if err := store.IncrementSerial(); err != nil {
		return err
	}
	fmt.Printf("\nDestroy complete. Resources: %d destroyed.\n", plan.Summary.Delete)
	return nil
}
