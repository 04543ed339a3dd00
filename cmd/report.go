package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	skyerr "skyctl/internal/errors"
)

// reporter prints user-facing status lines, colouring the status word
// when w is a terminal.
type reporter struct {
	w       io.Writer
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newReporter(w io.Writer, noColor bool) *reporter {
	r := lipgloss.NewRenderer(w)
	rep := &reporter{
		w:       w,
		success: r.NewStyle(),
		warning: r.NewStyle(),
		failure: r.NewStyle(),
	}
	if noColor || !isTerminal(w) {
		return rep
	}
	rep.success = rep.success.Foreground(lipgloss.Color("2")).Bold(true)
	rep.warning = rep.warning.Foreground(lipgloss.Color("3")).Bold(true)
	rep.failure = rep.failure.Foreground(lipgloss.Color("1")).Bold(true)
	return rep
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *reporter) Status(msg string) {
	fmt.Fprintln(r.w, msg)
}

func (r *reporter) Success(msg string) {
	fmt.Fprintln(r.w, r.success.Render(msg))
}

func (r *reporter) Warning(msg string) {
	fmt.Fprintf(r.w, "%s %s\n", r.warning.Render("WARNING:"), msg)
}

// Error prints err with the deployment step and category it carries.
func (r *reporter) Error(err error) {
	fmt.Fprintf(r.w, "%s %s\n", r.failure.Render("ERROR:"), describe(err))
}

// describe renders err as "[step <step>] <category>: <message>",
// omitting the parts err does not carry.
func describe(err error) string {
	var se *skyerr.StepError
	if skyerr.As(err, &se) {
		return fmt.Sprintf("[step %s] %s", se.Step, describeCategory(err, se.Err.Error()))
	}
	return describeCategory(err, err.Error())
}

func describeCategory(err error, msg string) string {
	if cat := skyerr.Classify(err); cat != skyerr.CategoryUnknown {
		return cat.String() + ": " + msg
	}
	return msg
}
