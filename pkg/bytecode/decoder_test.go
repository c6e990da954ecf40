package bytecode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u4(v int32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestSwitchPadding(t *testing.T) {
	tests := []struct {
		offset int
		want   int
	}{
		{0, 3},
		{1, 2},
		{2, 1},
		{3, 0},
		{4, 3},
		{7, 0},
		{10, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SwitchPadding(tt.offset), "offset %d", tt.offset)
	}
}

func TestDecode_SimpleSequence(t *testing.T) {
	// istore_1, iload_1, ifeq +5, goto -3, bipush 7, return
	code := []byte{0x3c, 0x1b, 0x99, 0x00, 0x05, 0xa7, 0xff, 0xfd, 0x10, 0x07, 0xb1}

	got, err := Decode(code)
	require.NoError(t, err)

	want := []Instruction{
		{Opcode: Istore0 + 1, Operands: []byte{}, Offset: 0, Length: 1},
		{Opcode: Iload0 + 1, Operands: []byte{}, Offset: 1, Length: 1},
		{Opcode: Ifeq, Operands: []byte{0x00, 0x05}, Offset: 2, Length: 3},
		{Opcode: Goto, Operands: []byte{0xff, 0xfd}, Offset: 5, Length: 3},
		{Opcode: Bipush, Operands: []byte{0x07}, Offset: 8, Length: 2},
		{Opcode: Return, Operands: []byte{}, Offset: 10, Length: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_TableswitchPaddingAtZero(t *testing.T) {
	// opcode, three padding bytes, default, low, high, two jump offsets
	code := concat(
		[]byte{byte(Tableswitch), 0x00, 0x00, 0x00},
		u4(20), u4(0), u4(1),
		u4(10), u4(15),
	)
	require.Len(t, code, 24)

	got, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Tableswitch, got[0].Opcode)
	assert.Equal(t, 0, got[0].Offset)
	assert.Equal(t, 24, got[0].Length)
	assert.Len(t, got[0].Operands, 23)
}

func TestDecode_TableswitchAfterPrefix(t *testing.T) {
	// iload_0 at 0, tableswitch at 1 needs two padding bytes.
	code := concat(
		[]byte{byte(Iload0), byte(Tableswitch), 0x00, 0x00},
		u4(12), u4(-1), u4(-1), u4(4),
		[]byte{byte(Return)},
	)

	got, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[1].Offset)
	assert.Equal(t, 1+2+12+4, got[1].Length)
	assert.Equal(t, Return, got[2].Opcode)
	assert.Equal(t, len(code)-1, got[2].Offset)
}

func TestDecode_LookupswitchEveryAlignment(t *testing.T) {
	for prefix := 0; prefix < 4; prefix++ {
		var code []byte
		for i := 0; i < prefix; i++ {
			code = append(code, byte(Nop))
		}
		code = append(code, byte(Lookupswitch))
		code = append(code, make([]byte, SwitchPadding(prefix))...)
		code = append(code, concat(u4(30), u4(2), u4(1), u4(8), u4(5), u4(16))...)

		got, err := Decode(code)
		require.NoError(t, err, "prefix %d", prefix)
		require.Len(t, got, prefix+1, "prefix %d", prefix)

		sw := got[prefix]
		assert.Equal(t, Lookupswitch, sw.Opcode)
		assert.Equal(t, prefix, sw.Offset)
		assert.Equal(t, 1+SwitchPadding(prefix)+8+16, sw.Length, "prefix %d", prefix)
		assert.Equal(t, len(code), sw.Next(), "prefix %d", prefix)
	}
}

func TestDecode_Wide(t *testing.T) {
	t.Run("iinc", func(t *testing.T) {
		code := []byte{byte(Wide), byte(Iinc), 0x01, 0x00, 0xff, 0xfe, byte(Return)}
		got, err := Decode(code)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Instruction{Opcode: Iinc, Operands: []byte{0x01, 0x00, 0xff, 0xfe}, Offset: 0, Length: 6, Wide: true}, got[0])
		assert.Equal(t, 6, got[1].Offset)
	})

	t.Run("iload", func(t *testing.T) {
		code := []byte{byte(Wide), byte(Iload), 0x01, 0x00}
		got, err := Decode(code)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Iload, got[0].Opcode)
		assert.True(t, got[0].Wide)
		assert.Equal(t, 4, got[0].Length)
	})

	t.Run("illegal target", func(t *testing.T) {
		_, err := Decode([]byte{byte(Wide), byte(Nop), 0x00, 0x00})
		assert.ErrorIs(t, err, ErrInvalidOpcode)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := Decode([]byte{byte(Wide)})
		assert.ErrorIs(t, err, ErrTruncatedInstruction)
	})

	t.Run("truncated iinc", func(t *testing.T) {
		_, err := Decode([]byte{byte(Wide), byte(Iinc), 0x00, 0x01, 0x00})
		assert.ErrorIs(t, err, ErrTruncatedInstruction)
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name      string
		code      []byte
		wantErr   error
		wantCount int
		wantAt    int
	}{
		{"truncated sipush", []byte{byte(Nop), byte(Sipush), 0x00}, ErrTruncatedInstruction, 1, 1},
		{"truncated goto", []byte{byte(Goto), 0x00}, ErrTruncatedInstruction, 0, 0},
		{"truncated goto_w", []byte{byte(GotoW), 0x00, 0x00, 0x00}, ErrTruncatedInstruction, 0, 0},
		{"undefined 0xca", []byte{byte(Nop), 0xca}, ErrInvalidOpcode, 1, 1},
		{"undefined 0xff", []byte{0xff}, ErrInvalidOpcode, 0, 0},
		{"tableswitch header cut", concat([]byte{byte(Tableswitch), 0, 0, 0}, u4(0), u4(0)), ErrTruncatedInstruction, 0, 0},
		{"tableswitch entries cut", concat([]byte{byte(Tableswitch), 0, 0, 0}, u4(0), u4(0), u4(3), u4(1)), ErrTruncatedInstruction, 0, 0},
		{"tableswitch inverted range", concat([]byte{byte(Tableswitch), 0, 0, 0}, u4(0), u4(5), u4(1)), ErrTruncatedInstruction, 0, 0},
		{"lookupswitch negative pairs", concat([]byte{byte(Lookupswitch), 0, 0, 0}, u4(0), u4(-1)), ErrTruncatedInstruction, 0, 0},
		{"lookupswitch pairs cut", concat([]byte{byte(Lookupswitch), 0, 0, 0}, u4(0), u4(2), u4(1), u4(1)), ErrTruncatedInstruction, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.code)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, got, tt.wantCount)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantAt, de.Offset)
		})
	}
}

func TestInstructions_StopsAfterError(t *testing.T) {
	code := []byte{byte(Nop), 0xfe, byte(Nop)}
	var seen, errs int
	for _, err := range Instructions(code) {
		if err != nil {
			errs++
			continue
		}
		seen++
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, errs)
}

func TestInstructions_Restartable(t *testing.T) {
	code := []byte{0x3c, 0x99, 0x00, 0x03, 0xa7, 0x00, 0x00, 0xb1}
	seq := Instructions(code)

	collect := func() []Instruction {
		var out []Instruction
		for in, err := range seq {
			require.NoError(t, err)
			out = append(out, in)
		}
		return out
	}

	first := collect()
	second := collect()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass differs (-first +second):\n%s", diff)
	}
}

func TestInstructions_EarlyBreak(t *testing.T) {
	code := []byte{byte(Nop), byte(Nop), byte(Nop)}
	n := 0
	for range Instructions(code) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestInstructions_ExactCoverage(t *testing.T) {
	code := concat(
		[]byte{byte(Iload0), byte(Wide), byte(Istore), 0x01, 0x02},
		[]byte{byte(Lookupswitch)}, make([]byte, SwitchPadding(5)), u4(0), u4(0),
		[]byte{byte(GotoW), 0, 0, 0, 0},
		[]byte{byte(Ifnonnull), 0, 0},
		[]byte{0xba, 0x00, 0x01, 0x00, 0x00},
		[]byte{byte(Return)},
	)

	next := 0
	for in, err := range Instructions(code) {
		require.NoError(t, err)
		assert.Equal(t, next, in.Offset, "gap or overlap before %s", in)
		next = in.Next()
	}
	assert.Equal(t, len(code), next)
}

func TestDecodeAt_OutOfRange(t *testing.T) {
	_, err := DecodeAt([]byte{byte(Nop)}, 1)
	assert.Error(t, err)
	_, err = DecodeAt(nil, 0)
	assert.Error(t, err)
}

func TestOpcode_Table(t *testing.T) {
	assert.Equal(t, "tableswitch", Tableswitch.String())
	assert.Equal(t, "op_0xcb", Opcode(0xcb).String())
	assert.True(t, Opcode(0xba).Defined())
	assert.False(t, Opcode(0xca).Defined())

	for op := 0xcb; op <= 0xff; op++ {
		assert.False(t, Opcode(op).Defined(), "0x%02x", op)
	}
	for op := 0x00; op <= 0xc9; op++ {
		assert.True(t, Opcode(op).Defined(), "0x%02x", op)
	}

	w, ok := Lookupswitch.OperandWidth()
	assert.False(t, ok)
	assert.Zero(t, w)

	w, ok = Opcode(0xb9).OperandWidth()
	assert.True(t, ok)
	assert.Equal(t, 4, w)
}

func TestLookup(t *testing.T) {
	op, ok := Lookup("goto_w")
	assert.True(t, ok)
	assert.Equal(t, GotoW, op)

	for i := 0x00; i <= 0xc9; i++ {
		got, ok := Lookup(Opcode(i).String())
		assert.True(t, ok, "0x%02x", i)
		assert.Equal(t, Opcode(i), got)
	}

	_, ok = Lookup("op_0xcb")
	assert.False(t, ok)
	_, ok = Lookup("GOTO")
	assert.False(t, ok, "mnemonics are lower case")
}
