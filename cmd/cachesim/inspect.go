package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/tracing"
)

func newInspectCmd() *cobra.Command {
	query := tracing.TaskQuery{}

	var listComponents bool

	inspectCmd := &cobra.Command{
		Use:   "inspect [database]",
		Short: "List the requests recorded with --trace-db",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			reader, err := tracing.NewDBTraceReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			if listComponents {
				return printComponents(reader)
			}

			return printTasks(reader, query)
		},
	}

	flags := inspectCmd.Flags()
	flags.BoolVar(&listComponents, "components", false,
		"list the components instead of the tasks")
	flags.StringVar(&query.ID, "id", "", "select a task by ID")
	flags.StringVar(&query.Kind, "kind", "", "select tasks of a kind")
	flags.StringVar(&query.What, "what", "", "select tasks by action, load or store")
	flags.StringVar(&query.Where, "where", "", "select tasks by component")
	flags.BoolVar(&query.EnableSteps, "steps", false, "show the steps of every task")

	return inspectCmd
}

func printComponents(reader tracing.TraceReader) error {
	components, err := reader.ListComponents()
	if err != nil {
		return err
	}

	for _, c := range components {
		fmt.Fprintln(stdout, c)
	}

	return nil
}

func printTasks(reader tracing.TraceReader, query tracing.TaskQuery) error {
	tasks, err := reader.ListTasks(query)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%.12f\t%.12f",
			t.ID, t.Location, t.Kind, t.What, t.StartTime, t.EndTime)

		if query.EnableSteps {
			steps := make([]string, 0, len(t.Steps))
			for _, s := range t.Steps {
				steps = append(steps, s.What)
			}

			fmt.Fprintf(stdout, "\t%s", strings.Join(steps, ","))
		}

		fmt.Fprintln(stdout)
	}

	return nil
}
