package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/trezcool/cadence/core"
	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/core/project"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	repo     project.Repository
	catalog  preset.Catalog
	defaults core.SchedulerConfig
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-to VERSION, down, status, ...)")
	fmt.Fprintln(cli.out, "  presets [-course CODE] - list the courses, or the presets of a course")
	fmt.Fprintln(cli.out, "  timeline -id ID - print the timeline of a project")
	fmt.Fprintln(cli.out, "  preview -start DATE -due DATE [-phases N] [-duration DAYS] [-evaluation DAYS] [-breathe DAYS] - preview an auto-set timeline")
}

// newFlagSet returns a flag set reporting to the CLI output instead of exiting.
func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	if f, ok := cli.out.(*os.File); !ok || !isTerminalFunc(int(f.Fd())) {
		color.NoColor = true
	}

	presetsCmd := cli.newFlagSet("presets")
	presetsCourse := presetsCmd.String("course", "", "The course code. All courses are listed when omitted.")

	timelineCmd := cli.newFlagSet("timeline")
	timelineID := timelineCmd.String("id", "", "The project ID.")

	previewCmd := cli.newFlagSet("preview")
	previewStart := previewCmd.String("start", "", "The project start date (YYYY-MM-DDTHH:MM).")
	previewDue := previewCmd.String("due", "", "The project deadline (YYYY-MM-DDTHH:MM).")
	previewPhases := previewCmd.Int("phases", cli.defaults.NumberOfPhases, "The number of phases.")
	previewDuration := previewCmd.Int("duration", cli.defaults.PhaseDurationDays, "The duration of each phase in days. Phases are spread evenly when 0.")
	previewEvaluation := previewCmd.Int("evaluation", cli.defaults.EvaluationDays, "The evaluation days after each phase.")
	previewBreathe := previewCmd.Int("breathe", cli.defaults.BreatheDays, "The breathe days after each evaluation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "presets":
		if err := parseFlags(presetsCmd, args[2:]); err != nil {
			return err
		}
		return cli.listPresets(*presetsCourse)
	case "timeline":
		if err := parseFlags(timelineCmd, args[2:]); err != nil {
			return err
		}
		if *timelineID == "" {
			timelineCmd.Usage()
			return errHelp
		}
		return cli.printProject(*timelineID)
	case "preview":
		if err := parseFlags(previewCmd, args[2:]); err != nil {
			return err
		}
		if *previewStart == "" || *previewDue == "" {
			previewCmd.Usage()
			return errHelp
		}
		return cli.preview(previewArgs{
			start:      *previewStart,
			due:        *previewDue,
			phases:     *previewPhases,
			duration:   *previewDuration,
			evaluation: *previewEvaluation,
			breathe:    *previewBreathe,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
