package sink

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// ConsoleSink prints the report to a terminal. Text output is colorized when
// Color is set.
type ConsoleSink struct {
	W      io.Writer // Destination, os.Stdout when nil
	Format string    // Format name, default "text"
	Title  string
	Color  bool
}

// Write renders report to the console and returns "stdout".
func (s *ConsoleSink) Write(_ context.Context, report core.Report) (string, error) {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	format := s.Format
	if format == "" {
		format = "text"
	}

	doc := NewDocument(report, s.Title)
	if format != "text" || !s.Color {
		if err := Render(w, format, doc); err != nil {
			return "", &core.SinkError{Location: "stdout", Err: err}
		}
		return "stdout", nil
	}

	var buf bytes.Buffer
	if err := Render(&buf, format, doc); err != nil {
		return "", &core.SinkError{Location: "stdout", Err: err}
	}
	if err := newPalette().paint(w, &buf); err != nil {
		return "", &core.SinkError{Location: "stdout", Err: err}
	}
	return "stdout", nil
}

type palette struct {
	banner  *color.Color
	added   *color.Color
	removed *color.Color
	changed *color.Color
	muted   *color.Color
}

func newPalette() *palette {
	p := &palette{
		banner:  color.New(color.FgCyan, color.Bold),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		changed: color.New(color.FgYellow),
		muted:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.banner, p.added, p.removed, p.changed, p.muted} {
		c.EnableColor()
	}
	return p
}

// paint copies text from r to w, coloring headings and row markers.
func (p *palette) paint(w io.Writer, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if c := p.colorFor(line); c != nil {
			line = c.Sprint(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (p *palette) colorFor(line string) *color.Color {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "COMPARISON "), strings.HasPrefix(line, "====="):
		return p.banner
	case strings.HasPrefix(line, "NEW ") && strings.HasSuffix(line, " ADDED:"),
		trimmed == "Row Added:":
		return p.added
	case strings.HasSuffix(line, " REMOVED:"), trimmed == "Row Removed:":
		return p.removed
	case strings.HasSuffix(line, " CHANGES:"), trimmed == "Row Changed:",
		strings.Contains(line, "Previous='"):
		return p.changed
	case trimmed == "No differences found", strings.HasPrefix(line, "Comparison skipped:"):
		return p.muted
	}
	return nil
}
