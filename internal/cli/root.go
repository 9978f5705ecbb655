// Package cli wires the stackform commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/stackform-io/stackform/internal/logging"
)

var (
	stackPath    string
	statePath    string
	region       string
	providerName string
	logLevel     string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "stackform",
	Short: "Declarative serverless stack deployments",
	Long: `Stackform deploys a declared serverless stack (DynamoDB table, IAM role,
Lambda function, API Gateway) idempotently. It diffs the declaration against
the recorded state, shows the plan, and only touches what changed. Re-running
after a partial failure resumes from where the previous run stopped.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, noColor)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&stackPath, "stack", "f", "stack.yaml", "Path to the stack declaration file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", ".stackform/state.json", "Path to the state file")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (overrides the stack file)")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "aws", "Resource provider (aws or memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
