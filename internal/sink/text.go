package sink

// text.go renders the plain-text report:
//
//	<title>
//	Base File: <first source>
//	Generated: 2006-01-02 15:04:05
//
//	====...
//	COMPARISON 1: v1.csv -> v2.csv
//	====...
//
//	NEW PART LOCATIONS ADDED:
//	-------...
//
//	Part Location: L7
//	  Part Location: L7
//	  Material: Glass
//
// followed by the removed and changed sections of every pair and a summary
// table of all pairs.

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/olekukonko/tablewriter"
)

const (
	bannerRule  = "================================================================================"
	sectionRule = "----------------------------------------"
)

func init() {
	RegisterFormat(Format{
		Name:        "text",
		Extension:   ".txt",
		ContentType: "text/plain; charset=utf-8",
		Render:      renderText,
	})
}

func renderText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	t := &textWriter{w: bw, key: doc.KeyColumn}

	t.line(doc.Title)
	t.line("Base File: " + doc.BaseSource)
	t.line("Key Column: " + doc.KeyColumn)
	t.line("Generated: " + doc.GeneratedAt.Format("2006-01-02 15:04:05"))
	t.blank()

	for _, c := range doc.Comparisons {
		t.comparison(c)
	}

	t.blank()
	t.line("SUMMARY")
	t.line(sectionRule)
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := summaryTable(w, doc); err != nil {
		return err
	}

	t.line(totalsLine(doc))
	return bw.Flush()
}

type textWriter struct {
	w   *bufio.Writer
	key string
}

func (t *textWriter) line(s string) {
	t.w.WriteString(s)
	t.w.WriteByte('\n')
}

func (t *textWriter) blank() {
	t.w.WriteByte('\n')
}

func (t *textWriter) comparison(c ComparisonDoc) {
	t.blank()
	t.line(bannerRule)
	t.line(fmt.Sprintf("COMPARISON %d: %s -> %s", c.Index, DisplayName(c.Previous), DisplayName(c.Current)))
	t.line(bannerRule)

	switch {
	case c.Error != nil:
		t.line(fmt.Sprintf("Comparison skipped: %s (Code: %s)", c.Error.Message, c.Error.Code))
	case c.NoDifferences:
		t.line("No differences found")
	default:
		keys := strings.ToUpper(inflection.Plural(t.key))
		if len(c.Added) > 0 {
			t.heading("NEW " + keys + " ADDED:")
			for _, k := range c.Added {
				t.records(k)
			}
		}
		if len(c.Removed) > 0 {
			t.heading(keys + " REMOVED:")
			for _, k := range c.Removed {
				t.records(k)
			}
		}
		if len(c.Changed) > 0 {
			t.heading(strings.ToUpper(t.key) + " CHANGES:")
			for _, k := range c.Changed {
				t.changes(k)
			}
		}
	}

	t.blank()
	t.line(bannerRule)
}

func (t *textWriter) heading(s string) {
	t.blank()
	t.line(s)
	t.line(sectionRule)
}

// records dumps every record of an added or removed key.
func (t *textWriter) records(k KeyDoc) {
	for _, r := range k.Records {
		t.blank()
		t.line(t.key + ": " + k.KeyLabel())
		for _, f := range r.Values {
			t.line("  " + f.Column + ": " + display(f.Value))
		}
	}
}

// changes dumps the row deltas of a changed key.
func (t *textWriter) changes(k KeyDoc) {
	t.blank()
	t.line(t.key + ": " + k.KeyLabel())
	for _, row := range k.Rows {
		switch row.Kind {
		case "changed":
			t.line("  Row Changed:")
			for _, ch := range row.Changes {
				t.line(fmt.Sprintf("    %s: Previous='%s' | Current='%s'", ch.Column, display(ch.Previous), display(ch.Current)))
			}
		case "added":
			t.line("  Row Added:")
			t.fields(row.Current)
		case "removed":
			t.line("  Row Removed:")
			t.fields(row.Previous)
		}
	}
}

// fields dumps a record without its key column.
func (t *textWriter) fields(r *RecordDoc) {
	if r == nil {
		return
	}
	for _, f := range r.Values {
		if f.Column == t.key {
			continue
		}
		t.line("    " + f.Column + ": " + display(f.Value))
	}
}

func display(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// summaryTable writes one row per comparison.
func summaryTable(w io.Writer, doc *Document) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Previous", "Current", "Added", "Removed", "Changed", "Unchanged", "Rows +", "Rows -", "Rows ~")

	for _, c := range doc.Comparisons {
		row := []string{strconv.Itoa(c.Index), DisplayName(c.Previous), DisplayName(c.Current)}
		if c.Error != nil {
			row = append(row, "skipped", c.Error.Code, "", "", "", "", "")
		} else {
			s := c.Summary
			row = append(row,
				strconv.Itoa(s.KeysAdded),
				strconv.Itoa(s.KeysRemoved),
				strconv.Itoa(s.KeysChanged),
				strconv.Itoa(s.KeysUnchanged),
				strconv.Itoa(s.RowsAdded),
				strconv.Itoa(s.RowsRemoved),
				strconv.Itoa(s.RowsChanged),
			)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// totalsLine summarizes the whole run in one sentence.
func totalsLine(doc *Document) string {
	t := doc.Totals
	keys := strings.ToLower(keyNoun(doc.KeyColumn))
	return fmt.Sprintf("%d %s compared: %s added, %s removed, %s changed.",
		len(doc.Comparisons), countNoun(len(doc.Comparisons), "pair"),
		count(t.KeysAdded, keys), count(t.KeysRemoved, keys), count(t.KeysChanged, keys))
}

func keyNoun(key string) string {
	if key == "" {
		return "key"
	}
	return key
}

func count(n int, noun string) string {
	return strconv.Itoa(n) + " " + countNoun(n, noun)
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return inflection.Plural(noun)
}
