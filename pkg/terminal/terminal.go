// Package terminal renders the interactive chat: banners, agent lists,
// run progress and the coordinator's markdown answers.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/agent-protocol/contoso-agents/pkg/agents"
	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D4FF")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
)

const defaultWidth = 80

// Printer writes styled output to one writer.
type Printer struct {
	out      io.Writer
	width    int
	markdown *glamour.TermRenderer

	title   lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	prompt  lipgloss.Style
}

// NewPrinter creates a printer for out. Colors and markdown styling are
// enabled only when out is a terminal.
func NewPrinter(out io.Writer, width int) *Printer {
	if width <= 0 {
		width = defaultWidth
	}
	r := lipgloss.NewRenderer(out)

	style := "notty"
	if isTerminal(out) {
		style = "light"
		if r.HasDarkBackground() {
			style = "dark"
		}
	}
	// A nil renderer falls back to printing the raw markdown.
	md, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)

	return &Printer{
		out:      out,
		width:    width,
		markdown: md,
		title:    r.NewStyle().Bold(true).Foreground(colorPrimary),
		label:    r.NewStyle().Bold(true).Foreground(colorPrimary),
		success:  r.NewStyle().Foreground(colorSuccess),
		warning:  r.NewStyle().Foreground(colorWarning),
		failure:  r.NewStyle().Bold(true).Foreground(colorError),
		muted:    r.NewStyle().Foreground(colorMuted),
		prompt:   r.NewStyle().Bold(true).Foreground(colorSuccess),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Banner prints a title framed by separators.
func (p *Printer) Banner(title string) {
	line := strings.Repeat("=", min(p.width, 60))
	fmt.Fprintln(p.out, p.muted.Render(line))
	fmt.Fprintln(p.out, p.title.Render(title))
	fmt.Fprintln(p.out, p.muted.Render(line))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success prints a line marked as successful.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, p.warning.Render("! "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, p.failure.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Agents lists provisioned agents with their platform IDs.
func (p *Printer) Agents(list []agents.AgentInfo) {
	for _, a := range list {
		fmt.Fprintf(p.out, "  %s %s\n", p.label.Render(a.Name), p.muted.Render("("+a.ID+")"))
	}
}

// Prompt prints the input prompt without a newline.
func (p *Printer) Prompt(label string) {
	fmt.Fprint(p.out, p.prompt.Render(label+": "))
}

// RunStatus prints a run status change.
func (p *Printer) RunStatus(run *platform.Run) {
	fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("  run %s: %s", run.ID, run.Status)))
}

// Markdown renders markdown for the terminal, or returns it unchanged when
// rendering fails.
func (p *Printer) Markdown(text string) string {
	if p.markdown == nil {
		return text
	}
	out, err := p.markdown.Render(text)
	if err != nil {
		return text
	}
	return out
}

// Result prints a task result: the rendered answer, then any generated files.
func (p *Printer) Result(result agents.TaskResult) {
	fmt.Fprintln(p.out, p.label.Render("Coordinator Response:"))
	fmt.Fprintln(p.out, p.muted.Render(strings.Repeat("-", min(p.width, 50))))
	fmt.Fprintln(p.out, strings.TrimRight(p.Markdown(result.Content), "\n"))
	if len(result.Artifacts) > 0 {
		fmt.Fprintln(p.out, p.muted.Render("Generated files: "+strings.Join(result.Artifacts, ", ")))
	}
	if !result.Success && result.Error != "" {
		p.Warn("%s", result.Error)
	}
}
