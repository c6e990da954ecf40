// Package bytecode decodes JVM method code arrays into instructions.
package bytecode

import "fmt"

// Opcode is a single JVM instruction byte.
// See https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-6.html
type Opcode uint8

// Opcodes referenced by name elsewhere in the module.
const (
	Nop          Opcode = 0x00
	Bipush       Opcode = 0x10
	Sipush       Opcode = 0x11
	Ldc          Opcode = 0x12
	Iload        Opcode = 0x15
	Lload        Opcode = 0x16
	Fload        Opcode = 0x17
	Dload        Opcode = 0x18
	Aload        Opcode = 0x19
	Iload0       Opcode = 0x1a
	Lload0       Opcode = 0x1e
	Fload0       Opcode = 0x22
	Dload0       Opcode = 0x26
	Aload0       Opcode = 0x2a
	Istore       Opcode = 0x36
	Lstore       Opcode = 0x37
	Fstore       Opcode = 0x38
	Dstore       Opcode = 0x39
	Astore       Opcode = 0x3a
	Istore0      Opcode = 0x3b
	Lstore0      Opcode = 0x3f
	Fstore0      Opcode = 0x43
	Dstore0      Opcode = 0x47
	Astore0      Opcode = 0x4b
	Iinc         Opcode = 0x84
	Ifeq         Opcode = 0x99
	Ifne         Opcode = 0x9a
	Iflt         Opcode = 0x9b
	Ifge         Opcode = 0x9c
	Ifgt         Opcode = 0x9d
	Ifle         Opcode = 0x9e
	IfIcmpeq     Opcode = 0x9f
	IfIcmpne     Opcode = 0xa0
	IfIcmplt     Opcode = 0xa1
	IfIcmpge     Opcode = 0xa2
	IfIcmpgt     Opcode = 0xa3
	IfIcmple     Opcode = 0xa4
	IfAcmpeq     Opcode = 0xa5
	IfAcmpne     Opcode = 0xa6
	Goto         Opcode = 0xa7
	Jsr          Opcode = 0xa8
	Ret          Opcode = 0xa9
	Tableswitch  Opcode = 0xaa
	Lookupswitch Opcode = 0xab
	Ireturn      Opcode = 0xac
	Return       Opcode = 0xb1
	Wide         Opcode = 0xc4
	Ifnull       Opcode = 0xc6
	Ifnonnull    Opcode = 0xc7
	GotoW        Opcode = 0xc8
	JsrW         Opcode = 0xc9
)

// variable marks opcodes whose length is computed by the decoder.
const variable = -1

// undefined marks opcodes that are reserved or unassigned.
const undefined = -2

// operandWidths holds the number of operand bytes following each opcode.
var operandWidths [256]int8

var names [256]string

var byName = make(map[string]Opcode, len(opcodeTable))

func init() {
	for i := range operandWidths {
		operandWidths[i] = undefined
	}
	for _, d := range opcodeTable {
		operandWidths[d.op] = d.width
		names[d.op] = d.name
		byName[d.name] = d.op
	}
}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

var opcodeTable = []struct {
	op    Opcode
	name  string
	width int8
}{
	{0x00, "nop", 0},
	{0x01, "aconst_null", 0},
	{0x02, "iconst_m1", 0},
	{0x03, "iconst_0", 0},
	{0x04, "iconst_1", 0},
	{0x05, "iconst_2", 0},
	{0x06, "iconst_3", 0},
	{0x07, "iconst_4", 0},
	{0x08, "iconst_5", 0},
	{0x09, "lconst_0", 0},
	{0x0a, "lconst_1", 0},
	{0x0b, "fconst_0", 0},
	{0x0c, "fconst_1", 0},
	{0x0d, "fconst_2", 0},
	{0x0e, "dconst_0", 0},
	{0x0f, "dconst_1", 0},
	{0x10, "bipush", 1},
	{0x11, "sipush", 2},
	{0x12, "ldc", 1},
	{0x13, "ldc_w", 2},
	{0x14, "ldc2_w", 2},
	{0x15, "iload", 1},
	{0x16, "lload", 1},
	{0x17, "fload", 1},
	{0x18, "dload", 1},
	{0x19, "aload", 1},
	{0x1a, "iload_0", 0},
	{0x1b, "iload_1", 0},
	{0x1c, "iload_2", 0},
	{0x1d, "iload_3", 0},
	{0x1e, "lload_0", 0},
	{0x1f, "lload_1", 0},
	{0x20, "lload_2", 0},
	{0x21, "lload_3", 0},
	{0x22, "fload_0", 0},
	{0x23, "fload_1", 0},
	{0x24, "fload_2", 0},
	{0x25, "fload_3", 0},
	{0x26, "dload_0", 0},
	{0x27, "dload_1", 0},
	{0x28, "dload_2", 0},
	{0x29, "dload_3", 0},
	{0x2a, "aload_0", 0},
	{0x2b, "aload_1", 0},
	{0x2c, "aload_2", 0},
	{0x2d, "aload_3", 0},
	{0x2e, "iaload", 0},
	{0x2f, "laload", 0},
	{0x30, "faload", 0},
	{0x31, "daload", 0},
	{0x32, "aaload", 0},
	{0x33, "baload", 0},
	{0x34, "caload", 0},
	{0x35, "saload", 0},
	{0x36, "istore", 1},
	{0x37, "lstore", 1},
	{0x38, "fstore", 1},
	{0x39, "dstore", 1},
	{0x3a, "astore", 1},
	{0x3b, "istore_0", 0},
	{0x3c, "istore_1", 0},
	{0x3d, "istore_2", 0},
	{0x3e, "istore_3", 0},
	{0x3f, "lstore_0", 0},
	{0x40, "lstore_1", 0},
	{0x41, "lstore_2", 0},
	{0x42, "lstore_3", 0},
	{0x43, "fstore_0", 0},
	{0x44, "fstore_1", 0},
	{0x45, "fstore_2", 0},
	{0x46, "fstore_3", 0},
	{0x47, "dstore_0", 0},
	{0x48, "dstore_1", 0},
	{0x49, "dstore_2", 0},
	{0x4a, "dstore_3", 0},
	{0x4b, "astore_0", 0},
	{0x4c, "astore_1", 0},
	{0x4d, "astore_2", 0},
	{0x4e, "astore_3", 0},
	{0x4f, "iastore", 0},
	{0x50, "lastore", 0},
	{0x51, "fastore", 0},
	{0x52, "dastore", 0},
	{0x53, "aastore", 0},
	{0x54, "bastore", 0},
	{0x55, "castore", 0},
	{0x56, "sastore", 0},
	{0x57, "pop", 0},
	{0x58, "pop2", 0},
	{0x59, "dup", 0},
	{0x5a, "dup_x1", 0},
	{0x5b, "dup_x2", 0},
	{0x5c, "dup2", 0},
	{0x5d, "dup2_x1", 0},
	{0x5e, "dup2_x2", 0},
	{0x5f, "swap", 0},
	{0x60, "iadd", 0},
	{0x61, "ladd", 0},
	{0x62, "fadd", 0},
	{0x63, "dadd", 0},
	{0x64, "isub", 0},
	{0x65, "lsub", 0},
	{0x66, "fsub", 0},
	{0x67, "dsub", 0},
	{0x68, "imul", 0},
	{0x69, "lmul", 0},
	{0x6a, "fmul", 0},
	{0x6b, "dmul", 0},
	{0x6c, "idiv", 0},
	{0x6d, "ldiv", 0},
	{0x6e, "fdiv", 0},
	{0x6f, "ddiv", 0},
	{0x70, "irem", 0},
	{0x71, "lrem", 0},
	{0x72, "frem", 0},
	{0x73, "drem", 0},
	{0x74, "ineg", 0},
	{0x75, "lneg", 0},
	{0x76, "fneg", 0},
	{0x77, "dneg", 0},
	{0x78, "ishl", 0},
	{0x79, "lshl", 0},
	{0x7a, "ishr", 0},
	{0x7b, "lshr", 0},
	{0x7c, "iushr", 0},
	{0x7d, "lushr", 0},
	{0x7e, "iand", 0},
	{0x7f, "land", 0},
	{0x80, "ior", 0},
	{0x81, "lor", 0},
	{0x82, "ixor", 0},
	{0x83, "lxor", 0},
	{0x84, "iinc", 2},
	{0x85, "i2l", 0},
	{0x86, "i2f", 0},
	{0x87, "i2d", 0},
	{0x88, "l2i", 0},
	{0x89, "l2f", 0},
	{0x8a, "l2d", 0},
	{0x8b, "f2i", 0},
	{0x8c, "f2l", 0},
	{0x8d, "f2d", 0},
	{0x8e, "d2i", 0},
	{0x8f, "d2l", 0},
	{0x90, "d2f", 0},
	{0x91, "i2b", 0},
	{0x92, "i2c", 0},
	{0x93, "i2s", 0},
	{0x94, "lcmp", 0},
	{0x95, "fcmpl", 0},
	{0x96, "fcmpg", 0},
	{0x97, "dcmpl", 0},
	{0x98, "dcmpg", 0},
	{0x99, "ifeq", 2},
	{0x9a, "ifne", 2},
	{0x9b, "iflt", 2},
	{0x9c, "ifge", 2},
	{0x9d, "ifgt", 2},
	{0x9e, "ifle", 2},
	{0x9f, "if_icmpeq", 2},
	{0xa0, "if_icmpne", 2},
	{0xa1, "if_icmplt", 2},
	{0xa2, "if_icmpge", 2},
	{0xa3, "if_icmpgt", 2},
	{0xa4, "if_icmple", 2},
	{0xa5, "if_acmpeq", 2},
	{0xa6, "if_acmpne", 2},
	{0xa7, "goto", 2},
	{0xa8, "jsr", 2},
	{0xa9, "ret", 1},
	{0xaa, "tableswitch", variable},
	{0xab, "lookupswitch", variable},
	{0xac, "ireturn", 0},
	{0xad, "lreturn", 0},
	{0xae, "freturn", 0},
	{0xaf, "dreturn", 0},
	{0xb0, "areturn", 0},
	{0xb1, "return", 0},
	{0xb2, "getstatic", 2},
	{0xb3, "putstatic", 2},
	{0xb4, "getfield", 2},
	{0xb5, "putfield", 2},
	{0xb6, "invokevirtual", 2},
	{0xb7, "invokespecial", 2},
	{0xb8, "invokestatic", 2},
	{0xb9, "invokeinterface", 4},
	{0xba, "invokedynamic", 4},
	{0xbb, "new", 2},
	{0xbc, "newarray", 1},
	{0xbd, "anewarray", 2},
	{0xbe, "arraylength", 0},
	{0xbf, "athrow", 0},
	{0xc0, "checkcast", 2},
	{0xc1, "instanceof", 2},
	{0xc2, "monitorenter", 0},
	{0xc3, "monitorexit", 0},
	{0xc4, "wide", variable},
	{0xc5, "multianewarray", 3},
	{0xc6, "ifnull", 2},
	{0xc7, "ifnonnull", 2},
	{0xc8, "goto_w", 4},
	{0xc9, "jsr_w", 4},
}

// String returns the mnemonic, or a hex placeholder for undefined opcodes.
func (o Opcode) String() string {
	if n := names[o]; n != "" {
		return n
	}
	return fmt.Sprintf("op_0x%02x", uint8(o))
}

// Defined reports whether o is an assigned opcode.
func (o Opcode) Defined() bool {
	return operandWidths[o] != undefined
}

// OperandWidth returns the fixed operand size of o and false for opcodes
// whose length depends on the stream (switches, wide) or that are undefined.
func (o Opcode) OperandWidth() (int, bool) {
	w := operandWidths[o]
	if w < 0 {
		return 0, false
	}
	return int(w), true
}

// widenable lists the opcodes that may follow a wide prefix.
func widenable(o Opcode) bool {
	switch o {
	case Iload, Lload, Fload, Dload, Aload,
		Istore, Lstore, Fstore, Dstore, Astore,
		Ret, Iinc:
		return true
	}
	return false
}
