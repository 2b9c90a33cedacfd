package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"inkframe/internal/palette"
)

type severity int

const (
	sevInfo severity = iota
	sevOK
	sevWarn
	sevError
)

var severityStyle = [...]struct {
	tag  string
	ansi string
}{
	sevInfo:  {"INFO", "34"},
	sevOK:    {"OK", "32"},
	sevWarn:  {"WARN", "33"},
	sevError: {"ERROR", "31"},
}

const statusLabelWidth = 14

// statusReport accumulates sectioned "label: [TAG] detail" lines for the
// status command.
type statusReport struct {
	color bool
	b     strings.Builder
}

func newStatusReport(w io.Writer) *statusReport {
	return &statusReport{color: shouldColorize(w)}
}

func (r *statusReport) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func (r *statusReport) section(title string) {
	if r.b.Len() > 0 {
		r.b.WriteByte('\n')
	}
	heading := "== " + title + " =="
	r.b.WriteString(r.paint("1", heading))
	r.b.WriteByte('\n')
}

func (r *statusReport) add(sev severity, label, format string, args ...any) {
	style := severityStyle[sev]
	detail := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", r.paint(style.ansi, "["+style.tag+"]"))
	if detail != "" {
		line += " " + detail
	}
	r.b.WriteString(line)
	r.b.WriteByte('\n')
}

func (r *statusReport) String() string {
	return r.b.String()
}

// swatch renders a two-cell 24-bit color block, or nothing off a terminal.
func swatch(c palette.Color, colorize bool) string {
	if !colorize {
		return ""
	}
	return fmt.Sprintf("\x1b[48;2;%d;%d;%dm  \x1b[0m", c.R, c.G, c.B)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
