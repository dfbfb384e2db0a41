package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// docxText returns one line per body paragraph. Table rows become one line
// with the cell texts separated by tabs.
func docxText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse docx: %v", r)
		}
	}()
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			lines = append(lines, v.String())
		case *docx.Table:
			lines = append(lines, tableLines(v)...)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func tableLines(tbl *docx.Table) []string {
	var lines []string
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			parts := make([]string, 0, len(cell.Paragraphs))
			for _, para := range cell.Paragraphs {
				if s := strings.TrimSpace(para.String()); s != "" {
					parts = append(parts, s)
				}
			}
			for _, nested := range cell.Tables {
				parts = append(parts, tableLines(nested)...)
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return lines
}
