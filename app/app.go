package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow/scalar"
	"github.com/pkg/errors"

	"github.com/cube2222/arrowexec/config"
	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/graph"
	"github.com/cube2222/arrowexec/outputs/eager"
	"github.com/cube2222/arrowexec/outputs/formats"
	"github.com/cube2222/arrowexec/physical"
)

type App struct {
	cfg                *config.Config
	out                io.Writer
	output             string
	describeWatermarks bool
}

func NewApp(cfg *config.Config, out io.Writer, output string, describeWatermarks bool) *App {
	return &App{
		cfg:                cfg,
		out:                out,
		output:             output,
		describeWatermarks: describeWatermarks,
	}
}

// RunPlan materializes and runs the plan, printing its output once it finishes successfully.
func (app *App) RunPlan(ctx context.Context, plan *physical.Plan, params map[string]string) error {
	format, err := app.formatFactory()
	if err != nil {
		return err
	}

	env, err := plan.Environment(app.cfg)
	if err != nil {
		return errors.Wrap(err, "invalid plan parameters")
	}
	variables, err := Variables(env, params)
	if err != nil {
		return err
	}

	start := time.Now()
	executionPlan, err := plan.Root.Materialize(env)
	if err != nil {
		return errors.Wrap(err, "couldn't materialize the physical plan into an execution plan")
	}
	log.Printf("time to materialization: %s", time.Since(start))

	printer := eager.NewOutputPrinter(executionPlan, format, app.describeWatermarks)
	if err := printer.Run(execution.NewExecutionContext(ctx, variables), app.out); err != nil {
		log.Printf("query failed after %s: %s", time.Since(start), err)
		return errors.Wrap(err, "couldn't run query")
	}
	log.Printf("query finished in %s", time.Since(start))

	return nil
}

// Explain writes the plan as a graphviz graph, optionally followed by its output schema.
func (app *App) Explain(plan *physical.Plan, withSchema bool) error {
	g, err := graph.Show(physical.DescribeNode(plan.Root))
	if err != nil {
		return errors.Wrap(err, "couldn't build plan graph")
	}
	if _, err := fmt.Fprint(app.out, g.String()); err != nil {
		return err
	}
	if !withSchema {
		return nil
	}

	env, err := plan.Environment(app.cfg)
	if err != nil {
		return errors.Wrap(err, "invalid plan parameters")
	}
	executionPlan, err := plan.Root.Materialize(env)
	if err != nil {
		return errors.Wrap(err, "couldn't materialize the physical plan into an execution plan")
	}
	formats.WriteSchema(app.out, executionPlan.LogicalMetadata().Schema)
	return nil
}

func (app *App) formatFactory() (func(io.Writer) formats.Format, error) {
	switch app.output {
	case "", "table":
		return func(w io.Writer) formats.Format {
			return formats.NewTableFormatter(w, app.cfg.Output.ColWidth)
		}, nil
	case "csv":
		return func(w io.Writer) formats.Format {
			return formats.NewCSVFormatter(w)
		}, nil
	case "json":
		return func(w io.Writer) formats.Format {
			return formats.NewJSONFormatter(w)
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format '%s', available: table, csv, json", app.output)
	}
}

// Variables parses textual parameter values into the types declared by the plan.
// Every declared parameter must have a value and every value must be declared.
func Variables(env physical.Environment, params map[string]string) (*execution.VariableContext, error) {
	values := make(map[string]scalar.Scalar, len(params))
	for name, text := range params {
		dt, ok := env.Parameters[name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s' is not declared by the plan", execution.ErrUnknownParameter, name)
		}
		value, err := physical.ParseValue(dt, text)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value of parameter '%s'", name)
		}
		values[name] = value
	}

	var missing []string
	for name := range env.Parameters {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing values for parameters: %v", missing)
	}

	return execution.NewVariableContext(values), nil
}
