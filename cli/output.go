package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/danielmmetz/hn-reader/format"
	"github.com/danielmmetz/hn-reader/hn"
	"github.com/danielmmetz/hn-reader/saved"
)

const titleWidth = 70

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func renderStories(w io.Writer, items []hn.Item, offset int, isSaved func(int) bool, now time.Time) error {
	rows := make([][]string, 0, len(items))
	for i, it := range items {
		mark := ""
		if isSaved(it.ID) {
			mark = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(offset + i + 1),
			mark,
			strconv.Itoa(it.ID),
			format.Truncate(it.Title, titleWidth),
			format.Pluralize(it.Score, "point", ""),
			format.Pluralize(it.Descendants, "comment", ""),
			it.By,
			format.TimeAgo(it.Time, now),
			string(format.CategoryOf(it.URL)),
			format.Domain(it.URL),
		})
	}
	t := newTable(w)
	t.Header([]string{"#", "", "id", "title", "score", "comments", "by", "age", "kind", "domain"})
	if err := t.Bulk(rows); err != nil {
		return err
	}
	return t.Render()
}

func renderSaved(w io.Writer, items []saved.Item, now time.Time) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.Itoa(it.ID),
			format.Truncate(it.Title, titleWidth),
			it.Domain,
			format.TimeAgo(it.SavedAt/1000, now),
		})
	}
	t := newTable(w)
	t.Header([]string{"id", "title", "domain", "saved"})
	if err := t.Bulk(rows); err != nil {
		return err
	}
	return t.Render()
}

func renderComment(w io.Writer, c hn.Comment, now time.Time) {
	color.New(color.FgCyan).Fprintf(w, "%s", c.By)
	fmt.Fprintf(w, " · %s · %s\n", format.TimeAgo(c.Time, now), format.Pluralize(len(c.Kids), "reply", "replies"))
	fmt.Fprintf(w, "%s\n\n", format.PlainText(c.Text))
}

func success(w io.Writer, f string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+f+"\n", args...)
}

func info(w io.Writer, f string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, f+"\n", args...)
}

func heading(w io.Writer, title string) {
	color.New(color.FgWhite, color.Bold).Fprintf(w, "%s\n", title)
}
