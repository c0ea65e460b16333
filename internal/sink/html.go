package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

func init() {
	RegisterFormat(Format{
		Name:        "html",
		Extension:   ".html",
		ContentType: "text/html; charset=utf-8",
		Render: func(w io.Writer, doc *Document) error {
			return ReportPage(doc).Render(context.Background(), w)
		},
	})
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
h1{font-size:1.4rem}h2{font-size:1.15rem;border-bottom:2px solid #d1d5db;padding-bottom:.3rem;margin-top:2rem}
h3{font-size:1rem;margin-top:1.2rem}table{border-collapse:collapse;margin:.5rem 0}
th,td{border:1px solid #d1d5db;padding:.25rem .6rem;text-align:left;font-size:.9rem}
th{background:#f3f4f6}.added{color:#166534}.removed{color:#991b1b}.changed{color:#92400e}
.muted{color:#6b7280}.error{background:#fef2f2;border:1px solid #fecaca;padding:.5rem}`

// ReportPage renders doc as a standalone HTML page.
func ReportPage(doc *Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}
		p.raw("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		p.raw("<title>")
		p.text(doc.Title)
		p.raw("</title><style>" + pageStyle + "</style></head><body>")

		p.raw("<h1>")
		p.text(doc.Title)
		p.raw("</h1><p class=\"muted\">Base file: ")
		p.text(doc.BaseSource)
		p.raw("<br>Key column: ")
		p.text(doc.KeyColumn)
		p.raw("<br>Generated: ")
		p.text(doc.GeneratedAt.Format("2006-01-02 15:04:05"))
		p.raw("</p>")

		if err := ReportBody(doc).Render(ctx, w); err != nil {
			return err
		}

		p.raw("</body></html>\n")
		return p.err
	})
}

// ReportBody renders the comparisons of doc without the page chrome.
func ReportBody(doc *Document) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}
		for _, c := range doc.Comparisons {
			p.comparison(doc.KeyColumn, c)
		}
		return p.err
	})
}

type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *htmlWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *htmlWriter) comparison(keyColumn string, c ComparisonDoc) {
	p.raw(fmt.Sprintf("<section id=\"comparison-%d\"><h2>Comparison %d: ", c.Index, c.Index))
	p.text(DisplayName(c.Previous) + " → " + DisplayName(c.Current))
	p.raw("</h2>")

	switch {
	case c.Error != nil:
		p.raw("<p class=\"error\">Comparison skipped: ")
		p.text(c.Error.Message)
		p.raw(" (Code: ")
		p.text(c.Error.Code)
		p.raw(")</p>")
	case c.NoDifferences:
		p.raw("<p class=\"muted\">No differences found</p>")
	default:
		p.summary(c.Summary)
		if len(c.Added) > 0 {
			p.raw("<h3 class=\"added\">Added</h3>")
			for _, k := range c.Added {
				p.recordTable(keyColumn, k)
			}
		}
		if len(c.Removed) > 0 {
			p.raw("<h3 class=\"removed\">Removed</h3>")
			for _, k := range c.Removed {
				p.recordTable(keyColumn, k)
			}
		}
		if len(c.Changed) > 0 {
			p.raw("<h3 class=\"changed\">Changed</h3>")
			for _, k := range c.Changed {
				p.changeTable(keyColumn, k)
			}
		}
	}
	p.raw("</section>")
}

func (p *htmlWriter) summary(s SummaryDoc) {
	p.raw("<p class=\"muted\">")
	p.text(fmt.Sprintf("%d added, %d removed, %d changed, %d unchanged",
		s.KeysAdded, s.KeysRemoved, s.KeysChanged, s.KeysUnchanged))
	p.raw("</p>")
}

func (p *htmlWriter) recordTable(keyColumn string, k KeyDoc) {
	if len(k.Records) == 0 {
		return
	}
	p.raw("<table><caption>")
	p.text(keyColumn + ": " + k.KeyLabel())
	p.raw("</caption><tr>")
	for _, f := range k.Records[0].Values {
		p.raw("<th>")
		p.text(f.Column)
		p.raw("</th>")
	}
	p.raw("</tr>")
	for _, r := range k.Records {
		p.raw("<tr>")
		for _, f := range r.Values {
			p.raw("<td>")
			p.text(display(f.Value))
			p.raw("</td>")
		}
		p.raw("</tr>")
	}
	p.raw("</table>")
}

func (p *htmlWriter) changeTable(keyColumn string, k KeyDoc) {
	p.raw("<table><caption>")
	p.text(keyColumn + ": " + k.KeyLabel())
	p.raw("</caption><tr><th>Row</th><th>Column</th><th>Previous</th><th>Current</th></tr>")
	for _, row := range k.Rows {
		switch row.Kind {
		case "changed":
			for _, ch := range row.Changes {
				p.changeRow("changed", row.Kind, ch.Column, display(ch.Previous), display(ch.Current))
			}
		case "added":
			for _, f := range row.Current.Values {
				if f.Column != keyColumn {
					p.changeRow("added", row.Kind, f.Column, "", display(f.Value))
				}
			}
		case "removed":
			for _, f := range row.Previous.Values {
				if f.Column != keyColumn {
					p.changeRow("removed", row.Kind, f.Column, display(f.Value), "")
				}
			}
		}
	}
	p.raw("</table>")
}

func (p *htmlWriter) changeRow(class, kind, column, prev, curr string) {
	p.raw("<tr class=\"" + class + "\"><td>")
	p.text(kind)
	p.raw("</td><td>")
	p.text(column)
	p.raw("</td><td>")
	p.text(prev)
	p.raw("</td><td>")
	p.text(curr)
	p.raw("</td></tr>")
}
