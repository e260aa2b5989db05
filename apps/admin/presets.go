package main

import (
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
)

// listPresets lists the course codes, or the presets of `course` when given.
func (cli *commandLine) listPresets(course string) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true

	if course == "" {
		table.AddRow(headerColor.Sprint("COURSE"), headerColor.Sprint("PRESETS"))
		for _, code := range cli.catalog.Courses() {
			presets, _ := cli.catalog.ForCourse(code)
			table.AddRow(code, len(presets))
		}
		fmt.Fprintln(cli.out, table)
		return nil
	}

	presets, err := cli.catalog.ForCourse(course)
	if err != nil {
		return err
	}
	table.AddRow(headerColor.Sprint("TITLE"), headerColor.Sprint("PHASES"))
	for _, p := range presets {
		table.AddRow(p.Title, strings.Join(p.Phases, ", "))
	}
	fmt.Fprintln(cli.out, table)
	return nil
}
