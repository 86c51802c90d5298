package compiler

import (
	"errors"
	"math"
)

// ---------------------------------------------------------------------------
// Binder: recursive descent over the token stream
// ---------------------------------------------------------------------------
//
// The binder owns two concerns at once: building the tree and resolving
// names and arities. There is no separate semantic-analysis pass; return
// types are pre-labelled while binding and finalised by the evaluator.

// Parser binds a token stream into a resolved AST.
type Parser struct {
	tokens []Token
	tree   *Tree
}

// NewParser creates a parser over the given token stream.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, tree: NewTree()}
}

// ParseProgram parses top-level forms until the token stream is exhausted,
// registering each as a child of the synthetic root LET, and returns the
// bound tree. The root must end up with at least one non-definition body
// expression.
func (p *Parser) ParseProgram() (*Tree, error) {
	start, rest := 0, len(p.tokens)
	for rest > 0 {
		n, err := p.parseNode(start, rest, p.tree.Root())
		if err != nil {
			return nil, err
		}
		start += n
		rest -= n
	}

	if p.tree.SubCount(p.tree.Root(), false) == 0 {
		return nil, errors.New("root expression does not return")
	}
	return p.tree, nil
}

// matchingParens returns the length of the leading balanced-parenthesis
// sub-span of tokens[start:start+length], including both parentheses, or -1
// when the closing parenthesis is missing. tokens[start] must be a left
// parenthesis.
func (p *Parser) matchingParens(start, length int) int {
	depth := 0
	for k := start + 1; k < start+length; k++ {
		switch p.tokens[k].Type {
		case TokenRParen:
			if depth == 0 {
				return k - start + 1
			}
			depth--
		case TokenLParen:
			depth++
		}
	}
	return -1
}

// parseNode parses the leading expression of tokens[start:start+length] as a
// child of parent, returning the number of tokens consumed.
func (p *Parser) parseNode(start, length int, parent NodeIndex) (int, error) {
	if p.tokens[start].Type == TokenRParen {
		return 0, errorAt(p.tokens[start], "stray right parenthesis")
	}

	if p.tokens[start].Type == TokenLParen {
		return p.parseCompound(start, length, parent)
	}

	// Single-token forms.
	node := Node{Parent: parent, Eval: NullIndex}
	switch p.tokens[start].Type {
	case TokenLitI32:
		node.I32 = p.tokens[start].I32
		node.RType = ReturnI32
		node.Kind = NodeLiteral

	case TokenLitF32:
		node.F32 = p.tokens[start].F32
		node.RType = ReturnF32
		node.Kind = NodeLiteral

	case TokenIdent:
		initIdx := p.lookupVar(p.tokens[start].Text, parent)
		if initIdx == NullIndex {
			return 0, errorAt(p.tokens[start], "unknown variable %q", p.tokens[start].Text)
		}
		node.Name = p.tokens[start].Text
		node.RType = p.tree.Node(initIdx).RType
		node.Kind = NodeEvalVar
		node.Eval = initIdx

	default:
		return 0, errorAt(p.tokens[start], "unexpected token %s", p.tokens[start].Type)
	}

	idx := p.tree.Alloc(node)
	p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)
	return 1, nil
}

// parseCompound parses a parenthesized expression: a defun statement, a let
// expression, or a function call.
func (p *Parser) parseCompound(start, length int, parent NodeIndex) (int, error) {
	span := p.matchingParens(start, length)
	if span == -1 {
		return 0, errorAt(p.tokens[start], "stray left parenthesis")
	}
	if span == 2 {
		return 0, errorAt(p.tokens[start], "empty parentheses")
	}

	cur := start + 1  // step inside the left parenthesis
	rest := span - 2  // exclude both parentheses

	node := Node{Parent: parent, Eval: NullIndex}
	idx := NullIndex

	switch p.tokens[cur].Type {
	case TokenDefun:
		// defun statements are disallowed anywhere but in let expressions.
		if p.tree.Node(parent).Kind != NodeLet {
			return 0, errorAt(p.tokens[start], "misplaced defun")
		}
		// basic shape: defun f () expr
		if rest < 5 || p.tokens[cur+1].Type != TokenIdent {
			return 0, errorAt(p.tokens[start], "invalid defun")
		}
		cur++
		rest--

		// The node introduces a named scope.
		node.Name = p.tokens[cur].Text
		node.RType = ReturnUnknown
		node.Kind = NodeLet

		idx = p.tree.Alloc(node)
		p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)

		consumed, err := p.parseDefunParams(cur, rest, idx)
		if err != nil {
			return 0, err
		}
		cur += consumed
		rest -= consumed

	case TokenLet:
		// basic shape: let () expr
		if rest < 4 || p.tokens[cur+1].Type != TokenLParen {
			return 0, errorAt(p.tokens[start], "invalid let")
		}

		// The node introduces an anonymous scope.
		node.RType = ReturnNone
		node.Kind = NodeLet

		idx = p.tree.Alloc(node)
		p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)

		cur++
		rest--

		consumed, err := p.parseLetBindings(cur, rest, idx)
		if err != nil {
			return 0, err
		}
		cur += consumed
		rest -= consumed

	case TokenPlus, TokenMinus, TokenMul, TokenDiv,
		TokenIfZero, TokenIfNeg, TokenPrint, TokenReadI32, TokenReadF32,
		TokenIdent:
		node.Name = p.tokens[cur].Text
		node.RType = ReturnNone
		node.Kind = NodeEvalFun
		node.Eval = IntrinsicTarget(p.tokens[cur].Type)

		idx = p.tree.Alloc(node)
		p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)

		cur++
		rest--

	default:
		return 0, errorAt(p.tokens[start], "unexpected token %s", p.tokens[cur].Type)
	}

	// The remainder of the parenthesis body is a sub-expression sequence.
	for rest > 0 {
		consumed, err := p.parseNode(cur, rest, idx)
		if err != nil {
			return 0, err
		}
		cur += consumed
		rest -= consumed
	}

	// Validate the arity of the completed node.
	switch p.tree.Node(idx).Kind {
	case NodeLet:
		// let expressions and defun statements need at least one expression
		// to return.
		if p.tree.SubCount(idx, false) == 0 {
			return 0, errorAt(p.tokens[start], "invalid let/defun")
		}
		// Return type is copied from the last non-definition body expression.
		args := p.tree.Node(idx).Args
		for k := len(args) - 1; k >= 0; k-- {
			if p.tree.Node(args[k]).IsDefun() {
				continue
			}
			p.tree.Node(idx).RType = p.tree.Node(args[k]).RType
			break
		}

	case NodeEvalFun:
		subcount := p.tree.SubCount(idx, false)
		funargs := p.minFunArgs(idx)

		if funargs == unknownFun {
			return 0, errorAt(p.tokens[start], "unknown function %q", p.tree.Node(idx).Name)
		}
		// A non-negative count is exact, a negative one is a minimum.
		if funargs >= 0 && subcount != funargs || funargs < 0 && subcount < -funargs {
			return 0, errorAt(p.tokens[start], "invalid function call")
		}
	}

	return span, nil
}

// parseLetBindings parses the parenthesized binding list of a let
// expression: a sequence of (name expr) pairs, each becoming an INIT child
// of parent. Returns the number of tokens consumed.
func (p *Parser) parseLetBindings(start, length int, parent NodeIndex) (int, error) {
	span := p.matchingParens(start, length)
	if span == -1 {
		return 0, errorAt(p.tokens[start], "invalid let")
	}

	cur := start + 1
	rest := span - 2

	for rest > 0 {
		// basic shape of a binding: (x expr)
		if rest < 4 || p.tokens[cur].Type != TokenLParen || p.tokens[cur+1].Type != TokenIdent {
			return 0, errorAt(p.tokens[cur], "invalid let binding")
		}

		subspan := p.matchingParens(cur, rest)
		if subspan == -1 {
			return 0, errorAt(p.tokens[cur], "invalid let binding")
		}

		cur++ // step inside the binding's left parenthesis
		rest -= subspan
		inner := subspan - 2

		// The INIT's eval-target transiently carries its own index so that
		// EVAL-VAR references may point to it.
		idx := p.tree.Alloc(Node{
			Name:   p.tokens[cur].Text,
			RType:  ReturnNone,
			Kind:   NodeInit,
			Parent: parent,
			Eval:   NullIndex,
		})
		p.tree.Node(idx).Eval = idx
		p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)

		cur++ // past the name identifier
		inner--

		consumed, err := p.parseNode(cur, inner, idx)
		if err != nil {
			return 0, err
		}
		if consumed != inner {
			return 0, errorAt(p.tokens[cur], "invalid let binding")
		}

		// The initializer's return type propagates to the INIT.
		p.tree.Node(idx).RType = p.tree.Node(p.tree.Node(idx).Args[0]).RType

		cur += consumed + 1 // past the binding's right parenthesis
	}

	return span, nil
}

// parseDefunParams parses a defun's name-adjacent parameter list. Each
// parameter becomes an INIT child of parent with no initializer and an
// unknown return type. start addresses the function-name identifier; the
// returned count covers the identifier and the parameter list.
func (p *Parser) parseDefunParams(start, length int, parent NodeIndex) (int, error) {
	if p.tokens[start+1].Type != TokenLParen {
		return 0, errorAt(p.tokens[start], "invalid defun")
	}

	span := p.matchingParens(start+1, length-1)
	if span == -1 {
		return 0, errorAt(p.tokens[start+1], "invalid defun")
	}

	cur := start + 2 // past the name and the left parenthesis
	rest := span - 2

	for rest > 0 {
		if p.tokens[cur].Type != TokenIdent {
			return 0, errorAt(p.tokens[cur], "invalid defun parameter")
		}

		idx := p.tree.Alloc(Node{
			Name:   p.tokens[cur].Text,
			RType:  ReturnUnknown,
			Kind:   NodeInit,
			Parent: parent,
			Eval:   NullIndex,
		})
		p.tree.Node(idx).Eval = idx
		p.tree.Node(parent).Args = append(p.tree.Node(parent).Args, idx)

		cur++
		rest--
	}

	return span + 1, nil
}

// lookupVar resolves a variable name by walking parent links upward,
// inspecting the leading INIT children of each enclosing LET. When the walk
// lands on an INIT it skips past the containing LET before scanning, so that
// a binding can never refer to a sibling of its own binding group. Returns
// the INIT handle, or NullIndex.
func (p *Parser) lookupVar(name string, parent NodeIndex) NodeIndex {
	for parent != NullIndex {
		if p.tree.Node(parent).IsInit() {
			let := p.tree.Node(parent).Parent
			parent = p.tree.Node(let).Parent
			continue
		}

		if p.tree.Node(parent).Kind == NodeLet {
			for _, arg := range p.tree.Node(parent).Args {
				child := p.tree.Node(arg)
				if !child.IsInit() {
					break
				}
				if child.Name == name {
					return arg
				}
			}
		}

		parent = p.tree.Node(parent).Parent
	}
	return NullIndex
}

// lookupFun resolves a function name by walking parent links upward,
// checking each enclosing LET's own name and the names of its LET children.
// Sub-expressions are bound left to right, so a call resolves only if the
// callee was already registered by the time the call site is parsed.
func (p *Parser) lookupFun(name string, parent NodeIndex) NodeIndex {
	for parent != NullIndex {
		node := p.tree.Node(parent)
		if node.Kind == NodeLet {
			if node.Name == name {
				return parent
			}
			for _, arg := range node.Args {
				child := p.tree.Node(arg)
				if child.Kind != NodeLet {
					continue
				}
				if child.Name == name {
					return arg
				}
			}
		}
		parent = node.Parent
	}
	return NullIndex
}

// unknownFun is the minFunArgs result for an unresolvable callee.
const unknownFun = math.MaxInt

// minFunArgs returns the expected argument count for an EVAL-FUN node: a
// non-negative value is exact, a negative value is a negated minimum, and
// unknownFun means no such function exists. As a side effect the node's
// return type is pre-labelled, and user calls have their eval-target patched
// to the defining LET.
func (p *Parser) minFunArgs(idx NodeIndex) int {
	node := p.tree.Node(idx)

	switch node.Eval {
	case IntrinPlus, IntrinMinus, IntrinMul, IntrinDiv:
		node.RType = p.argsReturnType(idx)
		return -2
	case IntrinIfZero, IntrinIfNeg:
		node.RType = p.ifReturnType(idx)
		return 3
	case IntrinPrint:
		if len(node.Args) > 0 {
			node.RType = p.tree.Node(node.Args[0]).RType
		}
		return 1
	case IntrinReadI32:
		node.RType = ReturnI32
		return 0
	case IntrinReadF32:
		node.RType = ReturnF32
		return 0
	}

	defunIdx := p.lookupFun(node.Name, node.Parent)
	if defunIdx == NullIndex {
		return unknownFun
	}

	// Patch the return type and eval-target of the invocation.
	node.RType = p.tree.Node(defunIdx).RType
	node.Eval = defunIdx
	return p.tree.SubCount(defunIdx, true)
}

// argsReturnType returns the promoted type of the arguments to an
// arithmetic expression; promotion follows the ReturnType order.
func (p *Parser) argsReturnType(idx NodeIndex) ReturnType {
	args := p.tree.Node(idx).Args
	if len(args) == 0 {
		return ReturnNone
	}

	ret := p.tree.Node(args[0]).RType
	for _, arg := range args[1:] {
		if ret == ReturnUnknown {
			break
		}
		if t := p.tree.Node(arg).RType; t > ret {
			ret = t
		}
	}
	return ret
}

// ifReturnType returns the common type of an if expression's two branches,
// or unknown when they differ.
func (p *Parser) ifReturnType(idx NodeIndex) ReturnType {
	args := p.tree.Node(idx).Args
	if len(args) != 3 {
		return ReturnNone
	}

	ret := p.tree.Node(args[1]).RType
	if p.tree.Node(args[2]).RType != ret {
		ret = ReturnUnknown
	}
	return ret
}
