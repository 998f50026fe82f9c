package etl

import (
	"fmt"

	"github.com/antchfx/xpath"
)

// Shape is the runtime shape of a path evaluation result.
type Shape int

const (
	ShapeText Shape = iota
	ShapeNumber
	ShapeBoolean
	ShapeSequence
	ShapeUnknown
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeNumber:
		return "number"
	case ShapeBoolean:
		return "boolean"
	case ShapeSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Item is one node of a sequence result.
type Item struct {
	Type xpath.NodeType
	Text string
}

// Value is the tagged result of evaluating a path against a record:
// an atom (text, number, boolean) or a sequence of nodes.
type Value struct {
	Shape   Shape
	Text    string
	Number  float64
	Boolean bool
	Items   []Item
}

// Describe names the shape for error messages. Sequences holding
// non-text nodes say which node type broke the expectation.
func (v Value) Describe() string {
	if v.Shape != ShapeSequence {
		return v.Shape.String()
	}
	for _, it := range v.Items {
		if it.Type != xpath.TextNode && it.Type != xpath.AttributeNode {
			return fmt.Sprintf("sequence of %s nodes", nodeTypeName(it.Type))
		}
	}
	return "sequence"
}

// evaluate runs expr with nav as the context node. nav is copied so the
// caller's position is left untouched.
func evaluate(expr *xpath.Expr, nav xpath.NodeNavigator) Value {
	switch res := expr.Evaluate(nav.Copy()).(type) {
	case string:
		return Value{Shape: ShapeText, Text: res}
	case float64:
		return Value{Shape: ShapeNumber, Number: res}
	case bool:
		return Value{Shape: ShapeBoolean, Boolean: res}
	case *xpath.NodeIterator:
		v := Value{Shape: ShapeSequence}
		for res.MoveNext() {
			cur := res.Current()
			v.Items = append(v.Items, Item{Type: cur.NodeType(), Text: cur.Value()})
		}
		return v
	}
	return Value{Shape: ShapeUnknown}
}

func nodeTypeName(t xpath.NodeType) string {
	switch t {
	case xpath.RootNode:
		return "root"
	case xpath.ElementNode:
		return "element"
	case xpath.AttributeNode:
		return "attribute"
	case xpath.TextNode:
		return "text"
	case xpath.CommentNode:
		return "comment"
	default:
		return "other"
	}
}
