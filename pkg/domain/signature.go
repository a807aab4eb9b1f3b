package domain

import "strings"

// ParamInfo is one flattened slot of a declaration tree: a literal token or
// a typed placeholder, in positional order. Node points into the original
// tree so the rightmost literal can be rewritten during deduplication.
type ParamInfo struct {
	Name string
	Kind ParamKind
	Node *ParamNode
}

// FlattenParams walks a declaration tree depth-first. A literal token
// contributes one record named by its text; a typed placeholder contributes
// one record named by its type; a nested block splices its children's
// records in place. The result is the full signature in positional order.
func FlattenParams(nodes []ParamNode) []ParamInfo {
	var out []ParamInfo
	for i := range nodes {
		node := &nodes[i]
		switch node.Kind {
		case ParamLiteral:
			out = append(out, ParamInfo{Name: node.Text, Kind: ParamLiteral, Node: node})
		case ParamString, ParamBoolean:
			out = append(out, ParamInfo{Name: string(node.Kind), Kind: node.Kind, Node: node})
		case ParamBlock:
			out = append(out, FlattenParams(node.Children)...)
		}
	}
	return out
}

// SignatureName concatenates the flattened record names. Two functions with
// equal signature names are considered duplicates regardless of tree shape.
func SignatureName(nodes []ParamNode) string {
	var b strings.Builder
	for _, info := range FlattenParams(nodes) {
		b.WriteString(info.Name)
	}
	return b.String()
}

// LastLiteral returns the rightmost literal record of a flattened
// declaration, or false when the signature holds no literal segment.
func LastLiteral(info []ParamInfo) (*ParamNode, bool) {
	for i := len(info) - 1; i >= 0; i-- {
		if info[i].Kind == ParamLiteral {
			return info[i].Node, true
		}
	}
	return nil, false
}
