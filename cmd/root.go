package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cube2222/arrowexec/app"
	"github.com/cube2222/arrowexec/config"
	"github.com/cube2222/arrowexec/logs"
	"github.com/cube2222/arrowexec/physical"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "arrowexec",
	Short:         "Run physical query plans on the columnar streaming engine.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := logs.InitializeFileLogger(config.OctosqlDir)
		if err != nil {
			return fmt.Errorf("couldn't initialize logger: %w", err)
		}
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		return logCloser.Close()
	},
}

var runCmd = &cobra.Command{
	Use:   "run <plan.yml>",
	Args:  cobra.ExactArgs(1),
	Short: "Run a physical plan and print its output.",
	Example: `arrowexec run plan.yml
arrowexec run plan.yml --param threshold=3 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read()
		if err != nil {
			return fmt.Errorf("couldn't read config: %w", err)
		}
		plan, err := physical.ReadPlan(args[0])
		if err != nil {
			return err
		}
		parsedParams, err := parseParams(params)
		if err != nil {
			return err
		}

		return app.NewApp(cfg, os.Stdout, output, describeWatermarks).RunPlan(cmd.Context(), plan, parsedParams)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <plan.yml>",
	Args:  cobra.ExactArgs(1),
	Short: "Print a physical plan as a graphviz graph.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read()
		if err != nil {
			return fmt.Errorf("couldn't read config: %w", err)
		}
		plan, err := physical.ReadPlan(args[0])
		if err != nil {
			return err
		}

		return app.NewApp(cfg, os.Stdout, "", false).Explain(plan, explainSchema)
	},
}

func parseParams(params []string) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for _, param := range params {
		name, value, ok := strings.Cut(param, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter '%s', expected name=value", param)
		}
		if _, ok := out[name]; ok {
			return nil, fmt.Errorf("parameter '%s' given more than once", name)
		}
		out[name] = value
	}
	return out, nil
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var logCloser io.Closer
var params []string
var output string
var describeWatermarks bool
var explainSchema bool

func init() {
	runCmd.Flags().StringArrayVar(&params, "param", nil, "Query parameter value, as name=value. May be repeated.")
	runCmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, csv or json.")
	runCmd.Flags().BoolVar(&describeWatermarks, "describe-watermarks", false, "Print the watermarks received by the output after the records.")
	explainCmd.Flags().BoolVar(&explainSchema, "schema", false, "Also print the output schema of the plan.")

	rootCmd.AddCommand(runCmd, explainCmd)
}
