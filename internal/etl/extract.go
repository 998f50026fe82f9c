package etl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// ── Record Extractor ───────────────────────────────────────
// Turns a parsed XML tree into a Table: the record path selects one node
// per row, and every column path is evaluated against that node.

// Extract parses r and extracts one row per node selected by recordPath.
func Extract(r io.Reader, recordPath string, spec ColumnSpec) (*Table, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	return ExtractDocument(doc, recordPath, spec)
}

// ParseDocument reads a whole XML document into memory.
// Malformed input, input without a root element and content outside the
// root element yield a *ParseError.
func ParseDocument(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := checkTopLevel(doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	return doc, nil
}

// checkTopLevel requires exactly one root element, with nothing but
// whitespace, comments and processing instructions beside it.
func checkTopLevel(doc *xmlquery.Node) error {
	roots := 0
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.ElementNode:
			roots++
			if roots > 1 {
				return fmt.Errorf("extra content at the end of the document: element <%s>", n.Data)
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(n.Data) != "" {
				return fmt.Errorf("text outside the root element: %q", truncate(strings.TrimSpace(n.Data), 40))
			}
		}
	}
	if roots == 0 {
		return errors.New("document has no root element")
	}
	return nil
}

// ExtractDocument builds a table from an already parsed document.
// Relative record paths are evaluated from the root element, absolute ones
// from the document root. No table is returned if any column fails.
func ExtractDocument(doc *xmlquery.Node, recordPath string, spec ColumnSpec) (*Table, error) {
	records, err := selectRecords(doc, recordPath)
	if err != nil {
		return nil, err
	}

	exprs := make([]*xpath.Expr, spec.Len())
	for i, col := range spec.columns {
		expr, err := xpath.Compile(col.Path)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w: %v", col.Name, ErrInvalidPath, err)
		}
		exprs[i] = expr
	}

	table := NewTable(spec.Names())
	for _, rec := range records {
		row := make(Row, 0, spec.Len())
		for i, col := range spec.columns {
			cell, err := normalize(col, evaluate(exprs[i], rec))
			if err != nil {
				return nil, err
			}
			row = append(row, cell)
		}
		if len(row) == 0 {
			continue
		}
		if err := table.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// selectRecords evaluates recordPath and returns a navigator per element.
// The path must produce a node-set; anything else is an error.
func selectRecords(doc *xmlquery.Node, recordPath string) ([]xpath.NodeNavigator, error) {
	expr, err := xpath.Compile(recordPath)
	if err != nil {
		return nil, fmt.Errorf("record path %q: %w: %v", recordPath, ErrInvalidPath, err)
	}

	nav := navigatorAt(doc, rootElement(doc))
	iter, ok := expr.Evaluate(nav).(*xpath.NodeIterator)
	if !ok {
		return nil, fmt.Errorf("record path %q: %w: result is not a node-set", recordPath, ErrInvalidPath)
	}

	var records []xpath.NodeNavigator
	for iter.MoveNext() {
		cur := iter.Current()
		if cur.NodeType() != xpath.ElementNode {
			return nil, fmt.Errorf("record path %q: %w: selected a %s node", recordPath, ErrInvalidPath, nodeTypeName(cur.NodeType()))
		}
		records = append(records, cur.Copy())
	}
	return records, nil
}

// normalize checks v against the column's declared kind and turns it into a cell.
func normalize(col Column, v Value) (Cell, error) {
	switch col.Kind {
	case KindScalar:
		switch v.Shape {
		case ShapeText:
			if v.Text == "" {
				return Missing(), nil
			}
			return Text(v.Text), nil
		case ShapeNumber:
			return Number(v.Number), nil
		}
		return Cell{}, &SchemaMismatchError{Column: col.Name, Declared: col.Kind, Observed: v.Describe()}

	case KindList:
		if v.Shape != ShapeSequence {
			return Cell{}, &SchemaMismatchError{Column: col.Name, Declared: col.Kind, Observed: v.Describe()}
		}
		if len(v.Items) == 0 {
			return Missing(), nil
		}
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			if it.Type != xpath.TextNode && it.Type != xpath.AttributeNode {
				return Cell{}, &SchemaMismatchError{Column: col.Name, Declared: col.Kind, Observed: v.Describe()}
			}
			parts[i] = it.Text
		}
		// Items are not escaped: an embedded comma is indistinguishable
		// from the separator once joined.
		return Text(strings.Join(parts, ",")), nil
	}
	return Cell{}, fmt.Errorf("column %q: %w: %s", col.Name, ErrUnknownKind, col.Kind)
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// navigatorAt returns a navigator rooted at doc and positioned on target,
// a direct child of doc, so absolute paths still resolve from the top.
func navigatorAt(doc, target *xmlquery.Node) *xmlquery.NodeNavigator {
	nav := xmlquery.CreateXPathNavigator(doc)
	if !nav.MoveToChild() {
		return nav
	}
	for nav.Current() != target {
		if !nav.MoveToNext() {
			break
		}
	}
	return nav
}
