package opcount

import "github.com/panbanda/classmeter/pkg/bytecode"

// Category is the behavioural class an opcode is counted under.
type Category uint8

const (
	None Category = iota
	VariableAccess
	ConditionalBranch
	LoopMarker
)

func (c Category) String() string {
	switch c {
	case VariableAccess:
		return "variable_access"
	case ConditionalBranch:
		return "conditional_branch"
	case LoopMarker:
		return "loop_marker"
	default:
		return "none"
	}
}

// categories is the single classification table. Every opcode not listed
// maps to None. aload and aload_<n> are left out while astore is counted.
var categories = func() [256]Category {
	var t [256]Category

	for _, op := range []bytecode.Opcode{
		bytecode.Iload, bytecode.Lload, bytecode.Fload, bytecode.Dload,
		bytecode.Istore, bytecode.Lstore, bytecode.Fstore, bytecode.Dstore, bytecode.Astore,
	} {
		t[op] = VariableAccess
	}
	// <x>load_0..3 and <x>store_0..3 normalise to the indexed forms above.
	for _, base := range []bytecode.Opcode{
		bytecode.Iload0, bytecode.Lload0, bytecode.Fload0, bytecode.Dload0,
		bytecode.Istore0, bytecode.Lstore0, bytecode.Fstore0, bytecode.Dstore0, bytecode.Astore0,
	} {
		for n := bytecode.Opcode(0); n < 4; n++ {
			t[base+n] = VariableAccess
		}
	}

	for op := bytecode.Ifeq; op <= bytecode.IfAcmpne; op++ {
		t[op] = ConditionalBranch
	}
	t[bytecode.Ifnull] = ConditionalBranch
	t[bytecode.Ifnonnull] = ConditionalBranch

	t[bytecode.Goto] = LoopMarker
	t[bytecode.GotoW] = LoopMarker

	return t
}()

// Classify returns the category of op. It never inspects operands.
func Classify(op bytecode.Opcode) Category {
	return categories[op]
}
