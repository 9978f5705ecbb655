package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackform-io/stackform/internal/engine"
	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/provider"
	"github.com/stackform-io/stackform/internal/stackfile"
	"github.com/stackform-io/stackform/pkg/resource"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorDim    = "\033[2m"
)

func paint(color, s string) string {
	if noColor {
		return s
	}
	return color + s + colorReset
}

// resolveRegion picks the effective region: the --region flag wins over the
// stack file.
func resolveRegion(spec *ir.StackSpec) string {
	if region != "" {
		return region
	}
	if spec != nil {
		return spec.Region
	}
	return ""
}

// loadClient initializes the selected provider and returns its client.
func loadClient(ctx context.Context, spec *ir.StackSpec) (resource.Client, error) {
	registry := provider.NewRegistry()
	if err := registry.Load(ctx, providerName, provider.Options{Region: resolveRegion(spec)}); err != nil {
		return nil, err
	}
	return registry.Get(providerName)
}

// renderPlan prints the operation list and summary the way a human reviews
// it before approving.
func renderPlan(plan *ir.Plan) {
	for _, op := range plan.Operations {
		symbol, color := opStyle(op.Action)
		line := fmt.Sprintf("  %s %s %s", symbol, op.Kind, op.Name)
		if op.Reason != "" {
			line += paint(colorDim, "  # "+op.Reason)
		}
		fmt.Println(paint(color, line))
	}

	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create: %d\n", plan.Summary.Create)
	fmt.Printf("  Update: %d\n", plan.Summary.Update)
	fmt.Printf("  Delete: %d\n", plan.Summary.Delete)
	fmt.Printf("  NoOp:   %d\n", plan.Summary.NoOp)
	fmt.Printf("  Wait:   %d\n", plan.Summary.Wait)
}

func opStyle(action ir.Action) (symbol, color string) {
	switch action {
	case ir.ActionCreate:
		return "+", colorGreen
	case ir.ActionUpdate:
		return "~", colorYellow
	case ir.ActionDelete:
		return "-", colorRed
	case ir.ActionWait:
		return "…", colorDim
	default:
		return " ", colorDim
	}
}

func confirm(prompt string) bool {
	fmt.Printf("\n%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}

// consoleReporter prints executor progress line by line.
type consoleReporter struct{}

func (consoleReporter) OnOperationStart(op *ir.Operation) {
	_, color := opStyle(op.Action)
	fmt.Printf("%s %s %s... ", paint(color, string(op.Action)), op.Kind, op.Name)
}

func (consoleReporter) OnOperationEnd(op *ir.Operation, outcome engine.Outcome) {
	switch outcome.Status {
	case engine.StatusSucceeded:
		suffix := ""
		if outcome.Reconciled {
			suffix = " (reconciled existing resource)"
		}
		fmt.Printf("%s%s [%s]\n", paint(colorGreen, "OK"), suffix, outcome.Duration.Round(time.Millisecond))
	case engine.StatusSkipped:
		if outcome.Err != nil {
			fmt.Printf("%s (%v)\n", paint(colorYellow, "SKIPPED"), outcome.Err)
		} else {
			fmt.Println(paint(colorDim, "unchanged"))
		}
	case engine.StatusFailed:
		fmt.Printf("%s: %v\n", paint(colorRed, "FAILED"), outcome.Err)
	}
}

func (consoleReporter) OnPlanComplete(summary engine.Summary) {
	fmt.Printf("\nRun complete: %d succeeded, %d failed, %d skipped, %d unchanged, %d not attempted.\n",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.NoOps, summary.Pending)
}

// ExitCode maps an error from a command into the process exit code: 2 for
// plan or validation failures, 3 for execution failures, 1 for anything
// else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cycleErr *engine.CycleError
	var mismatchErr *engine.KindMismatchError
	var validationErr *stackfile.ValidationError
	var kindErr *stackfile.UnsupportedKindError
	if errors.As(err, &cycleErr) || errors.As(err, &mismatchErr) ||
		errors.As(err, &validationErr) || errors.As(err, &kindErr) {
		return 2
	}

	var partialErr *engine.PartialApplyError
	if errors.As(err, &partialErr) {
		return 3
	}
	return 1
}
