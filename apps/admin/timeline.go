package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/trezcool/cadence/core/timeline"
)

var (
	headerColor = color.New(color.Bold, color.FgCyan)
	warnColor   = color.New(color.FgYellow)
)

type previewArgs struct {
	start, due string
	phases     int
	duration   int
	evaluation int
	breathe    int
}

func formatWindow(w timeline.Window) string {
	if w.IsZero() {
		return "-"
	}
	return timeline.FormatInstant(w.Start) + " → " + timeline.FormatInstant(w.End)
}

// printPhases writes one row per phase followed by the project-level evaluation window.
func printPhases(w io.Writer, phases []timeline.Phase) {
	table := uitable.New()
	table.MaxColWidth = 48
	table.Wrap = true
	table.AddRow(
		headerColor.Sprint("#"), headerColor.Sprint("PHASE"), headerColor.Sprint("START"),
		headerColor.Sprint("END"), headerColor.Sprint("EVALUATION"), headerColor.Sprint("BREATHE"),
	)
	for _, ph := range phases {
		table.AddRow(
			ph.Index+1, ph.Name, timeline.FormatInstant(ph.Start), timeline.FormatInstant(ph.End),
			formatWindow(ph.EvaluationWindow), formatWindow(ph.BreatheWindow),
		)
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\nPeer evaluation: %s\n", formatWindow(timeline.ProjectEvaluationWindow(phases)))
}

func (cli *commandLine) printProject(id string) error {
	if err := checkSchemaFunc(cli.db); err != nil {
		return err
	}
	p, err := cli.repo.GetProjectByID(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%s %s\n", headerColor.Sprint(p.CourseCode), p.Title)
	fmt.Fprintf(cli.out, "Due: %s (evaluation %dd, breathe %dd)\n\n",
		timeline.FormatInstant(p.DueDate), p.EvaluationPhaseDays, p.BreathePhaseDays)
	printPhases(cli.out, p.Phases)

	// flag anything the current rules reject
	if err := timeline.ValidateTimeline(p.Phases, p.Window(), p.Policy()); err != nil {
		for _, fe := range timeline.FieldErrors(err) {
			warnColor.Fprintf(cli.out, "! %s: %s\n", fe.Field, fe.Error)
		}
	}
	return nil
}

func (cli *commandLine) preview(args previewArgs) error {
	start, err := timeline.ParseInstant(args.start)
	if err != nil {
		return err
	}
	due, err := timeline.ParseInstant(args.due)
	if err != nil {
		return err
	}

	spacing := timeline.SpacingPolicy{NumberOfPhases: args.phases, AutoSpacePhases: true}
	if args.duration > 0 {
		spacing.AutoSpacePhases, spacing.PhaseDurationDays = false, args.duration
	}
	phases, err := timeline.Allocate(
		timeline.ProjectWindow{Start: start, Due: due},
		timeline.BufferPolicy{EvaluationDays: args.evaluation, BreatheDays: args.breathe},
		spacing,
	)
	if err != nil {
		return err
	}
	printPhases(cli.out, phases)
	return nil
}
