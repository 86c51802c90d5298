package compiler

import (
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Printer: human-readable tree rendering
// ---------------------------------------------------------------------------

// PrintTree renders every top-level form of the tree, one node per line,
// indented by depth. The synthetic root itself is not shown. Each line
// carries the node's kind, return type, and name or value; INIT and
// EVAL-VAR nodes additionally show their eval-target handle in parentheses.
func PrintTree(w io.Writer, t *Tree) {
	for _, child := range t.Node(t.Root()).Args {
		printNode(w, t, child, 0)
	}
}

func printNode(w io.Writer, t *Tree, idx NodeIndex, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}

	node := t.Node(idx)
	switch node.Kind {
	case NodeLet:
		if node.Name != "" {
			fmt.Fprintf(w, "%s: %s %s\n", node.Kind, node.RType, node.Name)
		} else {
			fmt.Fprintf(w, "%s: %s\n", node.Kind, node.RType)
		}
	case NodeInit, NodeEvalVar:
		fmt.Fprintf(w, "%s: %s %s (%d)\n", node.Kind, node.RType, node.Name, node.Eval)
	case NodeEvalFun:
		fmt.Fprintf(w, "%s: %s %s\n", node.Kind, node.RType, node.Name)
	case NodeLiteral:
		switch node.RType {
		case ReturnF32:
			fmt.Fprintf(w, "%s: %s %f\n", node.Kind, node.RType, node.F32)
		default:
			fmt.Fprintf(w, "%s: %s %d\n", node.Kind, node.RType, node.I32)
		}
	}

	for _, child := range t.Node(idx).Args {
		printNode(w, t, child, depth+1)
	}
}
