package ingest

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

var supportedExt = map[string]struct{}{
	".txt":      {},
	".text":     {},
	".md":       {},
	".markdown": {},
	".pdf":      {},
	".docx":     {},
}

// UnsupportedFileMessage is the validation message for an extension outside
// SupportedExtensions.
const UnsupportedFileMessage = "only .pdf, .docx, .txt and .md files are supported"

func IsSupported(filename string) bool {
	_, ok := supportedExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// SupportedExtensions lists the accepted upload extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExt))
	for ext := range supportedExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractText returns the plain text of an uploaded resume or job file.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := supportedExt[ext]; !ok {
		return "", appErr.NewValidationError("file", UnsupportedFileMessage)
	}
	var out string
	switch ext {
	case ".pdf":
		raw, err := pdfText(data)
		if err != nil {
			return "", appErr.NewValidationError("file", "unreadable pdf: "+err.Error())
		}
		out = normalizeLines(raw)
	case ".docx":
		raw, err := docxText(data)
		if err != nil {
			return "", appErr.NewValidationError("file", "unreadable docx: "+err.Error())
		}
		out = normalizeLines(raw)
	default:
		if !utf8.Valid(data) {
			return "", appErr.NewValidationError("file", "file is not valid utf-8 text")
		}
		out = string(data)
		if ext == ".md" || ext == ".markdown" {
			out = markdownText(data)
		}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", appErr.NewValidationError("file", "file has no text")
	}
	return out, nil
}

// normalizeLines trims every line and drops the blank ones that layout
// based extractors emit between text runs.
func normalizeLines(raw string) string {
	raw = strings.ToValidUTF8(raw, "")
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// markdownText flattens a markdown document to one line per block, keeping
// list items and headings as separate lines.
func markdownText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var lines []string
	var current bytes.Buffer
	flush := func() {
		line := strings.TrimSpace(current.String())
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				current.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					current.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				current.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				flush()
				segs := node.Lines()
				for i := 0; i < segs.Len(); i++ {
					seg := segs.At(i)
					current.Write(seg.Value(source))
				}
				flush()
				return ast.WalkSkipChildren, nil
			}
		default:
			if n.Type() == ast.TypeBlock && !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()
	return strings.Join(lines, "\n")
}
