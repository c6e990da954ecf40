package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrTruncatedInstruction means the code array ends inside an instruction.
	ErrTruncatedInstruction = errors.New("truncated instruction")
	// ErrInvalidOpcode means an unassigned opcode or an illegal wide target.
	ErrInvalidOpcode = errors.New("invalid opcode")
)

// DecodeError reports where in a code array decoding stopped.
type DecodeError struct {
	Offset int
	Opcode Opcode
	Msg    string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d: %s", e.Err, e.Opcode, e.Offset, e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncated(op Opcode, offset int, format string, args ...any) error {
	return &DecodeError{Offset: offset, Opcode: op, Msg: fmt.Sprintf(format, args...), Err: ErrTruncatedInstruction}
}

// Instruction is one decoded instruction.
//
// Operands holds every byte after the opcode, including switch padding.
// For a wide-prefixed instruction Opcode is the widened opcode, Wide is set,
// and Length counts the prefix byte.
type Instruction struct {
	Opcode   Opcode
	Operands []byte
	Offset   int
	Length   int
	Wide     bool
}

// Next returns the offset of the following instruction.
func (in Instruction) Next() int {
	return in.Offset + in.Length
}

func (in Instruction) String() string {
	if in.Wide {
		return fmt.Sprintf("%d: wide %s % x", in.Offset, in.Opcode, in.Operands)
	}
	if len(in.Operands) == 0 {
		return fmt.Sprintf("%d: %s", in.Offset, in.Opcode)
	}
	return fmt.Sprintf("%d: %s % x", in.Offset, in.Opcode, in.Operands)
}

// SwitchPadding returns the number of padding bytes that follow a
// tableswitch or lookupswitch opcode located at offset. The operands start
// on the next multiple of four relative to the start of the code array.
func SwitchPadding(offset int) int {
	return (4 - (offset+1)%4) % 4
}

// DecodeAt decodes the instruction that starts at offset.
func DecodeAt(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("offset %d outside code array of %d bytes", offset, len(code))
	}
	op := Opcode(code[offset])

	switch op {
	case Tableswitch:
		return decodeTableswitch(code, offset)
	case Lookupswitch:
		return decodeLookupswitch(code, offset)
	case Wide:
		return decodeWide(code, offset)
	}

	width, ok := op.OperandWidth()
	if !ok {
		return Instruction{}, &DecodeError{Offset: offset, Opcode: op, Msg: "opcode is not assigned", Err: ErrInvalidOpcode}
	}
	end := offset + 1 + width
	if end > len(code) {
		return Instruction{}, truncated(op, offset, "needs %d operand bytes, %d remain", width, len(code)-offset-1)
	}
	return Instruction{
		Opcode:   op,
		Operands: code[offset+1 : end : end],
		Offset:   offset,
		Length:   1 + width,
	}, nil
}

func decodeTableswitch(code []byte, offset int) (Instruction, error) {
	pos := offset + 1 + SwitchPadding(offset)
	// default, low, high
	if pos+12 > len(code) {
		return Instruction{}, truncated(Tableswitch, offset, "header needs %d bytes, %d remain", pos+12-offset-1, len(code)-offset-1)
	}
	low := int32(binary.BigEndian.Uint32(code[pos+4:]))
	high := int32(binary.BigEndian.Uint32(code[pos+8:]))
	if high < low {
		return Instruction{}, truncated(Tableswitch, offset, "high %d below low %d", high, low)
	}
	entries := int64(high) - int64(low) + 1
	end := int64(pos+12) + entries*4
	if end > int64(len(code)) {
		return Instruction{}, truncated(Tableswitch, offset, "%d jump offsets need %d bytes, %d remain", entries, entries*4, len(code)-pos-12)
	}
	return switchInstruction(Tableswitch, code, offset, int(end)), nil
}

func decodeLookupswitch(code []byte, offset int) (Instruction, error) {
	pos := offset + 1 + SwitchPadding(offset)
	// default, npairs
	if pos+8 > len(code) {
		return Instruction{}, truncated(Lookupswitch, offset, "header needs %d bytes, %d remain", pos+8-offset-1, len(code)-offset-1)
	}
	npairs := int32(binary.BigEndian.Uint32(code[pos+4:]))
	if npairs < 0 {
		return Instruction{}, truncated(Lookupswitch, offset, "negative pair count %d", npairs)
	}
	end := int64(pos+8) + int64(npairs)*8
	if end > int64(len(code)) {
		return Instruction{}, truncated(Lookupswitch, offset, "%d match pairs need %d bytes, %d remain", npairs, int64(npairs)*8, len(code)-pos-8)
	}
	return switchInstruction(Lookupswitch, code, offset, int(end)), nil
}

func switchInstruction(op Opcode, code []byte, offset, end int) Instruction {
	return Instruction{
		Opcode:   op,
		Operands: code[offset+1 : end : end],
		Offset:   offset,
		Length:   end - offset,
	}
}

func decodeWide(code []byte, offset int) (Instruction, error) {
	if offset+1 >= len(code) {
		return Instruction{}, truncated(Wide, offset, "missing widened opcode")
	}
	target := Opcode(code[offset+1])
	if !widenable(target) {
		return Instruction{}, &DecodeError{Offset: offset, Opcode: Wide, Msg: fmt.Sprintf("cannot widen %s", target), Err: ErrInvalidOpcode}
	}
	width := 2
	if target == Iinc {
		width = 4
	}
	end := offset + 2 + width
	if end > len(code) {
		return Instruction{}, truncated(target, offset, "wide form needs %d operand bytes, %d remain", width, len(code)-offset-2)
	}
	return Instruction{
		Opcode:   target,
		Operands: code[offset+2 : end : end],
		Offset:   offset,
		Length:   end - offset,
		Wide:     true,
	}, nil
}

// Instructions returns a lazy sequence over every instruction in code.
// Each range over the sequence starts again from offset 0. On a decode
// error the error is yielded once and the sequence ends.
func Instructions(code []byte) iter.Seq2[Instruction, error] {
	return func(yield func(Instruction, error) bool) {
		for offset := 0; offset < len(code); {
			in, err := DecodeAt(code, offset)
			if err != nil {
				yield(Instruction{Offset: offset}, err)
				return
			}
			if !yield(in, nil) {
				return
			}
			offset = in.Next()
		}
	}
}

// Decode eagerly decodes code. On error it returns the instructions decoded
// before the failure.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for in, err := range Instructions(code) {
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
	return out, nil
}
