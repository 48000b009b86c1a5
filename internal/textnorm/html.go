// Package textnorm turns HTML email bodies into plain text the extractor can read.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	TableStart = "=== TABLE ==="
	TableEnd   = "=== END TABLE ==="
	CellSep    = " | "
)

// Table is a data table lifted out of the HTML. The first row is taken as the header.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// NormalizedText is the plain-text rendering of an email body.
type NormalizedText struct {
	Text              string  `json:"text"`
	HasStructuredData bool    `json:"has_structured_data"`
	Tables            []Table `json:"tables,omitempty"`
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true, atom.Nav: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Blockquote: true, atom.Pre: true, atom.Address: true, atom.Center: true,
	atom.Table: true, atom.Tbody: true, atom.Thead: true, atom.Tfoot: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Caption: true,
	atom.Form: true, atom.Fieldset: true, atom.Figure: true, atom.Figcaption: true,
}

var reTag = regexp.MustCompile(`(?s)<[^>]*>`)

// Normalize renders an HTML body as plain text. Every leaf table with content
// becomes a delimited block; everything else is flattened with block
// elements on their own lines. It never fails: unparsable input is tag-stripped.
func Normalize(body string) NormalizedText {
	if strings.TrimSpace(body) == "" {
		return NormalizedText{}
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return NormalizedText{Text: CollapseWhitespace(html.UnescapeString(reTag.ReplaceAllString(body, " ")))}
	}

	r := &renderer{}
	r.walk(doc)
	return NormalizedText{
		Text:              CollapseWhitespace(r.sb.String()),
		HasStructuredData: len(r.tables) > 0,
		Tables:            r.tables,
	}
}

// NormalizePlain cleans a text/plain body.
func NormalizePlain(body string) NormalizedText {
	return NormalizedText{Text: CollapseWhitespace(body)}
}

type renderer struct {
	sb     strings.Builder
	tables []Table
}

func (r *renderer) newline() {
	r.sb.WriteByte('\n')
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Br:
			r.newline()
			return
		case atom.Hr:
			r.newline()
			return
		case atom.Img:
			if alt := attr(n, "alt"); alt != "" {
				r.text(alt)
			}
			return
		case atom.Table:
			if t, ok := dataTable(n); ok {
				r.table(t)
				return
			}
		}
	}

	block := n.Type == html.ElementNode && blocks[n.DataAtom]
	if block {
		r.newline()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
	if block {
		r.newline()
	}
}

func (r *renderer) text(s string) {
	t := inline(s)
	if t == "" {
		if s != "" {
			r.sb.WriteByte(' ')
		}
		return
	}
	// preserve the separating space HTML would render
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' {
		r.sb.WriteByte(' ')
	}
	r.sb.WriteString(t)
	if last := s[len(s)-1]; last == ' ' || last == '\n' || last == '\t' {
		r.sb.WriteByte(' ')
	}
}

func (r *renderer) table(rows [][]string) {
	r.newline()
	r.sb.WriteString(TableStart)
	r.newline()
	for _, row := range rows {
		r.sb.WriteString(strings.Join(row, CellSep))
		r.newline()
	}
	r.sb.WriteString(TableEnd)
	r.newline()

	t := Table{Headers: rows[0]}
	if len(rows) > 1 {
		t.Rows = rows[1:]
	}
	r.tables = append(r.tables, t)
}

// dataTable returns the non-empty rows of a leaf table. A table that wraps
// other tables is walked instead, so each inner table becomes its own block
// and no cell text is emitted twice. Single-column tables are kept.
func dataTable(n *html.Node) ([][]string, bool) {
	if hasDescendant(n, atom.Table) {
		return nil, false
	}
	var rows [][]string
	eachRow(n, func(tr *html.Node) {
		var cells []string
		nonEmpty := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			cell := inline(cellText(c))
			if cell != "" {
				nonEmpty = true
			}
			cells = append(cells, cell)
		}
		if nonEmpty {
			rows = append(rows, cells)
		}
	})
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

func eachRow(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			fn(c)
		case atom.Tbody, atom.Thead, atom.Tfoot:
			eachRow(c, fn)
		}
	}
}

func cellText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br || blocks[n.DataAtom] {
				sb.WriteByte(' ')
			}
			if n.DataAtom == atom.Img {
				sb.WriteString(attr(n, "alt"))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func hasDescendant(n *html.Node, a atom.Atom) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return true
		}
		if hasDescendant(c, a) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
