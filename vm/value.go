// Package vm evaluates a bound slip tree, rewriting it in place as
// sub-programs resolve statically: pure constant sub-trees fold into
// literals, conditionals with literal predicates lose their untaken branch,
// and user-function calls inline as anonymous LET scopes.
package vm

import (
	"fmt"

	"github.com/slip-lang/slip/compiler"
)

// Value is the result of evaluating a node: a dynamic i32 or f32 payload
// plus the three status flags driving partial evaluation.
type Value struct {
	Type compiler.ReturnType
	I32  int32
	F32  float32

	// Literal means the value was computed from literals only, with no I/O
	// and no untaken branches; it intersects across operands.
	Literal bool
	// SideFx means evaluating the sub-tree had an observable effect; it
	// unions across operands.
	SideFx bool
	// Incoh means the static return type of the sub-tree is unknown; it
	// unions across operands.
	Incoh bool
}

func (v Value) String() string {
	if v.Type == compiler.ReturnF32 {
		return fmt.Sprintf("%s %f", v.Type, v.F32)
	}
	return fmt.Sprintf("%s %d", v.Type, v.I32)
}
