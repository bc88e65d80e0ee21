package main

import (
	"fmt"
	"io"

	"github.com/Zachacious/go-mockspec/internal/assembler"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	posStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// renderReport summarizes a generated suite: how many tests and mocks were
// written, then every invocation that could not be resolved.
func renderReport(w io.Writer, suite *assembler.Suite) {
	mocks := 0
	for _, t := range suite.Tests {
		mocks += len(t.Mocks)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Generated %d tests with %d mocks", len(suite.Tests), mocks)))

	diags := suite.Diagnostics()
	if len(diags) == 0 {
		fmt.Fprintln(w, okStyle.Render("All invocations resolved"))
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d unresolved invocations:", len(diags))))
	for _, d := range diags {
		where := d.Function
		if d.Command != "" {
			where = d.Pos.String() + " " + d.Command
		}
		fmt.Fprintf(w, "  %s %s %s\n", posStyle.Render(where), kindStyle.Render(d.Kind), d.Message)
	}
}
