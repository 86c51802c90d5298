package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/slip-lang/slip/compiler"
)

// ---------------------------------------------------------------------------
// Interpreter: tree-walking evaluation with in-place rewrites
// ---------------------------------------------------------------------------

// binding is one frame of the variable stack: the handle of the INIT that
// provides the value, and the value itself. A frame stays anonymous
// (NullIndex) until its owning LET claims it, so that a binding can never
// be observed by its own binding group.
type binding struct {
	target compiler.NodeIndex
	val    Value
}

// Interp evaluates a bound tree against a single shared variable stack.
// It is single-threaded; reads are synchronous on in, prints go to out.
type Interp struct {
	tree  *compiler.Tree
	in    *bufio.Reader
	out   io.Writer
	stack []binding
}

// New creates an interpreter over the given tree.
func New(tree *compiler.Tree, in io.Reader, out io.Writer) *Interp {
	return &Interp{
		tree: tree,
		in:   bufio.NewReader(in),
		out:  out,
	}
}

// Run evaluates the whole program and returns the value of the root's last
// body expression. The tree is left in its rewritten form.
func (ip *Interp) Run() (Value, error) {
	return ip.eval(ip.tree.Root())
}

func (ip *Interp) eval(idx compiler.NodeIndex) (Value, error) {
	restore := len(ip.stack)
	var ret Value
	var err error
	obsolete := false

	switch ip.tree.Node(idx).Kind {
	case compiler.NodeLet:
		sidefx := false

		// Initializations, when present, are mandatorily first.
		k := 0
		for ; k < len(ip.tree.Node(idx).Args); k++ {
			child := ip.tree.Node(idx).Args[k]
			if !ip.tree.Node(child).IsInit() {
				break
			}
			if ret, err = ip.eval(child); err != nil {
				return Value{}, err
			}
			sidefx = sidefx || ret.SideFx
		}

		// All initializers are done; claim the freshly pushed frames so the
		// new bindings become visible to the body.
		for j := range ip.stack[restore:] {
			init := ip.tree.Node(idx).Args[j]
			ip.stack[restore+j].target = ip.tree.Node(init).Eval
		}

		// Evaluate the body, skipping defun statements; the last
		// non-definition expression's value is the LET's value.
		for ; k < len(ip.tree.Node(idx).Args); k++ {
			child := ip.tree.Node(idx).Args[k]
			if ip.tree.Node(child).IsDefun() {
				continue
			}
			if ret, err = ip.eval(child); err != nil {
				return Value{}, err
			}
			sidefx = sidefx || ret.SideFx
		}
		ret.SideFx = sidefx

		// Pop the locals.
		ip.stack = ip.stack[:restore]

	case compiler.NodeInit:
		if ret, err = ip.eval(ip.tree.Node(idx).Args[0]); err != nil {
			return Value{}, err
		}
		ip.stack = append(ip.stack, binding{target: compiler.NullIndex, val: ret})

		// The stack is a side-effect and incoherence terminator: once a
		// value is named, its re-use is a reference, not a re-evaluation.
		top := &ip.stack[len(ip.stack)-1]
		top.val.SideFx = false
		top.val.Incoh = false

	case compiler.NodeEvalVar:
		// Scan the stack top-down; the search order implements lexical
		// shadowing, and a frame is guaranteed to exist by binding.
		target := ip.tree.Node(idx).Eval
		for j := len(ip.stack) - 1; ; j-- {
			if ip.stack[j].target == target {
				ret = ip.stack[j].val
				break
			}
		}

	case compiler.NodeEvalFun:
		switch ip.tree.Node(idx).Eval {
		case compiler.IntrinPlus:
			ret, err = ip.evalArith(idx,
				func(a, b int32) int32 { return a + b },
				func(a, b float32) float32 { return a + b })
		case compiler.IntrinMinus:
			ret, err = ip.evalArith(idx,
				func(a, b int32) int32 { return a - b },
				func(a, b float32) float32 { return a - b })
		case compiler.IntrinMul:
			ret, err = ip.evalArith(idx,
				func(a, b int32) int32 { return a * b },
				func(a, b float32) float32 { return a * b })
		case compiler.IntrinDiv:
			ret, err = ip.evalArith(idx,
				func(a, b int32) int32 { return a / b },
				func(a, b float32) float32 { return a / b })
		case compiler.IntrinIfZero:
			ret, obsolete, err = ip.evalIf(idx,
				func(v int32) bool { return v == 0 },
				func(v float32) bool { return v == 0 })
		case compiler.IntrinIfNeg:
			ret, obsolete, err = ip.evalIf(idx,
				func(v int32) bool { return v < 0 },
				func(v float32) bool { return v < 0 })
		case compiler.IntrinPrint:
			if ret, err = ip.eval(ip.tree.Node(idx).Args[0]); err != nil {
				return Value{}, err
			}
			if ret.Type == compiler.ReturnF32 {
				fmt.Fprintf(ip.out, "%f\n", ret.F32)
			} else {
				fmt.Fprintf(ip.out, "%d\n", ret.I32)
			}
			ret.SideFx = true
		case compiler.IntrinReadI32:
			// Nothing to update in a read node.
			fmt.Fprint(ip.out, "i: ")
			var v int32
			if _, err := fmt.Fscan(ip.in, &v); err != nil {
				return Value{}, errors.New("runtime error: invalid input")
			}
			return Value{Type: compiler.ReturnI32, I32: v, SideFx: true}, nil
		case compiler.IntrinReadF32:
			// Nothing to update in a read node.
			fmt.Fprint(ip.out, "f: ")
			var v float32
			if _, err := fmt.Fscan(ip.in, &v); err != nil {
				return Value{}, errors.New("runtime error: invalid input")
			}
			return Value{Type: compiler.ReturnF32, F32: v, SideFx: true}, nil
		default:
			return ip.inlineCall(idx)
		}
		if err != nil {
			return Value{}, err
		}

	case compiler.NodeLiteral:
		// Nothing to update in a literal node.
		node := ip.tree.Node(idx)
		if node.RType == compiler.ReturnF32 {
			return Value{Type: compiler.ReturnF32, F32: node.F32, Literal: true}, nil
		}
		return Value{Type: compiler.ReturnI32, I32: node.I32, Literal: true}, nil
	}

	if !obsolete {
		node := ip.tree.Node(idx)
		if idx != ip.tree.Root() && !node.IsInit() && ret.Literal && !ret.SideFx {
			// The node resolved statically: collapse it into a literal. An
			// INIT never collapses, preserving the binding relation for
			// later references; the root never collapses either.
			ip.tree.Replace(idx, compiler.Node{
				I32:    ret.I32,
				F32:    ret.F32,
				RType:  ret.Type,
				Kind:   compiler.NodeLiteral,
				Parent: node.Parent,
				Eval:   compiler.NullIndex,
			})
		} else if ret.Incoh {
			node.RType = compiler.ReturnUnknown
		} else {
			node.RType = ret.Type
		}
	}

	return ret, nil
}

// evalArith evaluates an arithmetic intrinsic left-associatively. The first
// f32 operand promotes the running accumulator to f32; every subsequent i32
// operand is cast before the binary operation.
func (ip *Interp) evalArith(idx compiler.NodeIndex, fi func(int32, int32) int32, ff func(float32, float32) float32) (Value, error) {
	// Arithmetic intrinsics have at least two arguments.
	first, err := ip.eval(ip.tree.Node(idx).Args[0])
	if err != nil {
		return Value{}, err
	}

	literal := first.Literal
	sidefx := first.SideFx
	incoh := first.Incoh

	var accI int32
	var accF float32
	isF32 := first.Type == compiler.ReturnF32
	if isF32 {
		accF = first.F32
	} else {
		accI = first.I32
	}

	k := 1
	if !isF32 {
		for ; k < len(ip.tree.Node(idx).Args); k++ {
			arg, err := ip.eval(ip.tree.Node(idx).Args[k])
			if err != nil {
				return Value{}, err
			}
			literal = literal && arg.Literal
			sidefx = sidefx || arg.SideFx
			incoh = incoh || arg.Incoh

			if arg.Type == compiler.ReturnF32 {
				accF = ff(float32(accI), arg.F32)
				isF32 = true
				k++
				break
			}
			accI = fi(accI, arg.I32)
		}
	}
	if isF32 {
		for ; k < len(ip.tree.Node(idx).Args); k++ {
			arg, err := ip.eval(ip.tree.Node(idx).Args[k])
			if err != nil {
				return Value{}, err
			}
			literal = literal && arg.Literal
			sidefx = sidefx || arg.SideFx
			incoh = incoh || arg.Incoh

			if arg.Type == compiler.ReturnF32 {
				accF = ff(accF, arg.F32)
			} else {
				accF = ff(accF, float32(arg.I32))
			}
		}
	}

	if isF32 {
		return Value{Type: compiler.ReturnF32, F32: accF, Literal: literal, SideFx: sidefx, Incoh: incoh}, nil
	}
	return Value{Type: compiler.ReturnI32, I32: accI, Literal: literal, SideFx: sidefx, Incoh: incoh}, nil
}

// evalIf evaluates a conditional intrinsic: the predicate first, then only
// the selected branch. A literal predicate elides the conditional: the
// selected branch splices into the parent, or, when the predicate had side
// effects, an anonymous LET keeps {predicate, branch} in evaluation order
// while dropping the test. The returned bool is true when the node spliced
// itself away and must not be touched afterwards.
func (ip *Interp) evalIf(idx compiler.NodeIndex, takeI func(int32) bool, takeF func(float32) bool) (Value, bool, error) {
	pred, err := ip.eval(ip.tree.Node(idx).Args[0])
	if err != nil {
		return Value{}, false, err
	}
	literal := pred.Literal
	sidefx := pred.SideFx

	taken := takeI(pred.I32)
	if pred.Type == compiler.ReturnF32 {
		taken = takeF(pred.F32)
	}
	branch := 2
	if taken {
		branch = 1
	}

	// The branch eval may rewrite the branch child in place.
	ret, err := ip.eval(ip.tree.Node(idx).Args[branch])
	if err != nil {
		return Value{}, false, err
	}
	ret.Literal = ret.Literal && literal
	ret.SideFx = ret.SideFx || sidefx

	args := ip.tree.Node(idx).Args
	if !literal && ip.tree.Node(args[1]).RType != ip.tree.Node(args[2]).RType {
		ret.Incoh = true
	}

	if literal {
		if sidefx {
			node := ip.tree.Node(idx)
			ip.tree.Replace(idx, compiler.Node{
				Kind:   compiler.NodeLet,
				RType:  compiler.ReturnNone,
				Parent: node.Parent,
				Eval:   compiler.NullIndex,
				Args:   []compiler.NodeIndex{node.Args[0], node.Args[branch]},
			})
		} else {
			node := ip.tree.Node(idx)
			ip.tree.ReplaceChild(idx, node.Args[branch], node.Parent)
			return ret, true, nil
		}
	}
	return ret, false, nil
}

// inlineCall executes a user-function call by materialising a fresh
// anonymous LET whose children are deep copies of the callee's parameter
// INITs and body, attaching the caller's arguments as the initializers of
// the cloned INITs, and replacing the call site with the new LET. Repeated
// calls produce repeated inlined copies, so recursion unrolls exactly as
// far as a conditional guard forces it.
func (ip *Interp) inlineCall(idx compiler.NodeIndex) (Value, error) {
	target := ip.tree.Node(idx).Eval
	parent := ip.tree.Node(idx).Parent

	newIdx := ip.tree.Alloc(compiler.Node{
		Kind:   compiler.NodeLet,
		RType:  compiler.ReturnNone,
		Parent: parent,
		Eval:   compiler.NullIndex,
	})
	ip.tree.CopySubtree(target, newIdx)
	ip.tree.ReplaceChild(idx, newIdx, parent)

	// Patch the cloned parameter INITs with the respective call arguments.
	for k, arg := range ip.tree.Node(idx).Args {
		param := ip.tree.Node(newIdx).Args[k]
		ip.tree.Node(param).Args = append(ip.tree.Node(param).Args, arg)
	}

	// Execute the callee, this time as a let expression.
	return ip.eval(newIdx)
}
