// Package compiler contains the front end of the slip language: the lexer,
// the tree arena, the binder that turns a token stream into a resolved AST,
// the tree printer, and the snapshot codec for rewritten trees.
package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: arena-allocated syntax tree
// ---------------------------------------------------------------------------

// NodeKind discriminates the semantic kind of an AST node.
type NodeKind uint16

const (
	NodeLet     NodeKind = iota // expression introducing named variables via a nested scope
	NodeInit                    // statement initializing a single named variable; leads a LET's children
	NodeEvalVar                 // variable evaluation expression
	NodeEvalFun                 // function evaluation expression
	NodeLiteral                 // literal expression
)

// A defun has no dedicated kind; it is a named LET, a no-op for linear
// execution that introduces a scope of initialized-from-args variables when
// branched to. Anonymous LETs are let expressions and inlined scopes.

var nodeKindNames = map[NodeKind]string{
	NodeLet:     "LET",
	NodeInit:    "INIT",
	NodeEvalVar: "EVAL-VAR",
	NodeEvalFun: "EVAL-FUN",
	NodeLiteral: "LITERAL",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// ReturnType is the static return type of a node. The order is significant:
// arithmetic promotion takes the maximum of the operand types.
type ReturnType uint16

const (
	ReturnNone    ReturnType = iota // not established
	ReturnI32                       // 32-bit signed integer
	ReturnF32                       // 32-bit IEEE-754 float
	ReturnUnknown                   // statically not determinable
)

var returnTypeNames = map[ReturnType]string{
	ReturnNone:    "none",
	ReturnI32:     "i32",
	ReturnF32:     "f32",
	ReturnUnknown: "unknown",
}

func (t ReturnType) String() string {
	if name, ok := returnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ReturnType(%d)", t)
}

// NodeIndex is a stable handle into the tree arena. Negative values are
// sentinels: NullIndex signals absence, and the intrinsic constants
// designate built-in functions as EVAL-FUN targets.
type NodeIndex int

const (
	NullIndex NodeIndex = -1

	IntrinPlus    NodeIndex = -2
	IntrinMinus   NodeIndex = -3
	IntrinMul     NodeIndex = -4
	IntrinDiv     NodeIndex = -5
	IntrinIfZero  NodeIndex = -6
	IntrinIfNeg   NodeIndex = -7
	IntrinPrint   NodeIndex = -8
	IntrinReadI32 NodeIndex = -9
	IntrinReadF32 NodeIndex = -10
)

// IntrinsicTarget maps a keyword token to its intrinsic sentinel handle,
// or NullIndex when the token is not an intrinsic.
func IntrinsicTarget(t TokenType) NodeIndex {
	switch t {
	case TokenPlus:
		return IntrinPlus
	case TokenMinus:
		return IntrinMinus
	case TokenMul:
		return IntrinMul
	case TokenDiv:
		return IntrinDiv
	case TokenIfZero:
		return IntrinIfZero
	case TokenIfNeg:
		return IntrinIfNeg
	case TokenPrint:
		return IntrinPrint
	case TokenReadI32:
		return IntrinReadI32
	case TokenReadF32:
		return IntrinReadF32
	}
	return NullIndex
}

// Node is a single AST node. The payload fields are valid according to Kind:
// LET uses Name (empty for anonymous scopes), INIT and EVAL-VAR use Name and
// Eval, EVAL-FUN uses Name and Eval, LITERAL uses I32 or F32 per RType.
//
// Eval is the eval-target handle: for an INIT it is the node's own index,
// for an EVAL-VAR the INIT providing the value, and for an EVAL-FUN either
// an intrinsic sentinel or the LET defining the called function.
type Node struct {
	Name   string
	I32    int32
	F32    float32
	RType  ReturnType
	Kind   NodeKind
	Parent NodeIndex
	Eval   NodeIndex
	Args   []NodeIndex
}

// IsDefun reports whether the node is a function definition (a named LET).
func (n *Node) IsDefun() bool {
	return n.Kind == NodeLet && n.Name != ""
}

// IsInit reports whether the node is a variable initialization statement.
func (n *Node) IsInit() bool {
	return n.Kind == NodeInit
}

// Tree is the append-only arena owning all AST nodes. Handles are stable for
// the lifetime of the run: rewrites replace node contents, never remove
// nodes. Index 0 is the synthetic root LET.
type Tree struct {
	nodes []Node
}

// NewTree creates an arena holding only the synthetic root LET.
func NewTree() *Tree {
	return &Tree{nodes: []Node{{
		Kind:   NodeLet,
		RType:  ReturnNone,
		Parent: NullIndex,
		Eval:   NullIndex,
	}}}
}

// Root returns the handle of the synthetic root LET.
func (t *Tree) Root() NodeIndex { return 0 }

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Alloc appends a node and returns its handle.
func (t *Tree) Alloc(n Node) NodeIndex {
	t.nodes = append(t.nodes, n)
	return NodeIndex(len(t.nodes) - 1)
}

// Node returns a pointer to the node at the given handle. The pointer is
// invalidated by the next Alloc.
func (t *Tree) Node(i NodeIndex) *Node {
	return &t.nodes[i]
}

// Replace overwrites the node at the given handle.
func (t *Tree) Replace(i NodeIndex, n Node) {
	t.nodes[i] = n
}

// SubCount counts a node's leading INIT children when countInit is true, or
// its trailing non-definition body expressions otherwise.
func (t *Tree) SubCount(i NodeIndex, countInit bool) int {
	node := &t.nodes[i]

	k := 0
	for ; k < len(node.Args); k++ {
		if !t.nodes[node.Args[k]].IsInit() {
			break
		}
	}
	if countInit {
		return k
	}

	count := 0
	for ; k < len(node.Args); k++ {
		// defun statements have no place in linear execution
		if t.nodes[node.Args[k]].IsDefun() {
			continue
		}
		count++
	}
	return count
}

// CopySubtree deep-copies the children of src under dst, which must have no
// children yet. Cloned nodes keep their eval-target handles; only the parent
// links are re-pointed to the clones.
func (t *Tree) CopySubtree(src, dst NodeIndex) {
	for _, child := range t.nodes[src].Args {
		n := t.nodes[child]
		n.Parent = dst
		n.Args = nil

		idx := t.Alloc(n)
		t.nodes[dst].Args = append(t.nodes[dst].Args, idx)
		t.CopySubtree(child, idx)
	}
}

// ReplaceChild swaps old for repl in parent's child list.
func (t *Tree) ReplaceChild(old, repl, parent NodeIndex) {
	args := t.nodes[parent].Args
	for k := range args {
		if args[k] == old {
			args[k] = repl
			return
		}
	}
}
