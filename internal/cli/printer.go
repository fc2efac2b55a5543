package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
	cyan  = color.New(color.FgCyan)
)

// consoleNotifier prints notifications as colored status lines.
type consoleNotifier struct {
	w io.Writer
}

func (c consoleNotifier) Notify(_ context.Context, n notify.Notification) {
	switch n.Severity {
	case notify.SeverityError:
		red.Fprintf(c.w, "✗ %s: %s\n", n.Title, n.Message)
	default:
		green.Fprintf(c.w, "✓ %s: %s\n", n.Title, n.Message)
	}
}

func heading(w io.Writer, format string, a ...any) {
	cyan.Fprintf(w, format, a...)
	fmt.Fprintln(w)
}
