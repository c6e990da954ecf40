// Package testutil provides helpers shared by package tests, most notably a
// builder for synthetic class files.
package testutil

import (
	"encoding/binary"
	"math"
)

// Constant pool tags used by the builder.
const (
	tagUtf8        = 1
	tagInteger     = 3
	tagLong        = 5
	tagDouble      = 6
	tagClass       = 7
	tagString      = 8
	tagMethodref   = 10
	tagNameAndType = 12
	tagMethodHdl   = 15
)

// Method describes one method to emit.
type Method struct {
	Flags      uint16
	Name       string
	Descriptor string
	// Code is the bytecode. A nil Code emits no Code attribute.
	Code      []byte
	MaxStack  uint16
	MaxLocals uint16
	// ExceptionEntries emits that many zeroed exception table rows.
	ExceptionEntries int
	// LineNumbers adds a LineNumberTable attribute nested in Code.
	LineNumbers bool
	// Deprecated adds a Deprecated attribute before the Code attribute.
	Deprecated bool
}

// ClassBuilder assembles a minimal class file in memory.
type ClassBuilder struct {
	Major uint16
	Minor uint16

	pool       []byte
	next       uint16
	utf8       map[string]uint16
	thisClass  uint16
	superClass uint16
	interfaces []uint16
	fields     [][]byte
	methods    [][]byte
	attributes [][]byte
}

// NewClass starts a class named name extending java/lang/Object.
func NewClass(name string) *ClassBuilder {
	b := &ClassBuilder{
		Major: 52,
		next:  1,
		utf8:  make(map[string]uint16),
	}
	b.thisClass = b.Class(name)
	b.superClass = b.Class("java/lang/Object")
	return b
}

func (b *ClassBuilder) add(tag byte, body []byte, slots uint16) uint16 {
	idx := b.next
	b.pool = append(b.pool, tag)
	b.pool = append(b.pool, body...)
	b.next += slots
	return idx
}

// Utf8 interns s and returns its index.
func (b *ClassBuilder) Utf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	body := binary.BigEndian.AppendUint16(nil, uint16(len(s)))
	body = append(body, s...)
	idx := b.add(tagUtf8, body, 1)
	b.utf8[s] = idx
	return idx
}

// Class adds a Class entry for name.
func (b *ClassBuilder) Class(name string) uint16 {
	return b.add(tagClass, u2(b.Utf8(name)), 1)
}

// String adds a String entry.
func (b *ClassBuilder) String(s string) uint16 {
	return b.add(tagString, u2(b.Utf8(s)), 1)
}

// Integer adds an Integer entry.
func (b *ClassBuilder) Integer(v int32) uint16 {
	return b.add(tagInteger, u4(uint32(v)), 1)
}

// Long adds a Long entry, which takes two slots.
func (b *ClassBuilder) Long(v int64) uint16 {
	return b.add(tagLong, binary.BigEndian.AppendUint64(nil, uint64(v)), 2)
}

// Double adds a Double entry, which takes two slots.
func (b *ClassBuilder) Double(v float64) uint16 {
	return b.add(tagDouble, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)), 2)
}

// Methodref adds a Methodref with its NameAndType.
func (b *ClassBuilder) Methodref(class, name, desc string) uint16 {
	c := b.Class(class)
	nt := b.add(tagNameAndType, append(u2(b.Utf8(name)), u2(b.Utf8(desc))...), 1)
	return b.add(tagMethodref, append(u2(c), u2(nt)...), 1)
}

// MethodHandle adds a MethodHandle entry.
func (b *ClassBuilder) MethodHandle(kind byte, ref uint16) uint16 {
	return b.add(tagMethodHdl, append([]byte{kind}, u2(ref)...), 1)
}

// Raw appends an arbitrary tag and body. Use it to inject invalid entries.
func (b *ClassBuilder) Raw(tag byte, body []byte) uint16 {
	return b.add(tag, body, 1)
}

// Interface adds an implemented interface.
func (b *ClassBuilder) Interface(name string) *ClassBuilder {
	b.interfaces = append(b.interfaces, b.Class(name))
	return b
}

// Field adds a field carrying a ConstantValue attribute.
func (b *ClassBuilder) Field(name, desc string) *ClassBuilder {
	f := u2(0x0002)
	f = append(f, u2(b.Utf8(name))...)
	f = append(f, u2(b.Utf8(desc))...)
	f = append(f, u2(1)...)
	f = append(f, b.attribute("ConstantValue", u2(b.Integer(0)))...)
	b.fields = append(b.fields, f)
	return b
}

// Method adds a public method with the given bytecode.
func (b *ClassBuilder) Method(name, desc string, code []byte) *ClassBuilder {
	return b.AddMethod(Method{Flags: 0x0001, Name: name, Descriptor: desc, Code: code, MaxStack: 4, MaxLocals: 4})
}

// AddMethod adds a fully described method.
func (b *ClassBuilder) AddMethod(m Method) *ClassBuilder {
	out := u2(m.Flags)
	out = append(out, u2(b.Utf8(m.Name))...)
	out = append(out, u2(b.Utf8(m.Descriptor))...)

	var attrs [][]byte
	if m.Deprecated {
		attrs = append(attrs, b.attribute("Deprecated", nil))
	}
	if m.Code != nil {
		attrs = append(attrs, b.codeAttribute(m))
	}
	out = append(out, u2(uint16(len(attrs)))...)
	for _, a := range attrs {
		out = append(out, a...)
	}
	b.methods = append(b.methods, out)
	return b
}

// SourceFile adds a SourceFile class attribute.
func (b *ClassBuilder) SourceFile(name string) *ClassBuilder {
	b.attributes = append(b.attributes, b.attribute("SourceFile", u2(b.Utf8(name))))
	return b
}

func (b *ClassBuilder) codeAttribute(m Method) []byte {
	body := u2(m.MaxStack)
	body = append(body, u2(m.MaxLocals)...)
	body = append(body, u4(uint32(len(m.Code)))...)
	body = append(body, m.Code...)
	body = append(body, u2(uint16(m.ExceptionEntries))...)
	body = append(body, make([]byte, 8*m.ExceptionEntries)...)
	if m.LineNumbers {
		body = append(body, u2(1)...)
		body = append(body, b.attribute("LineNumberTable", append(u2(1), 0, 0, 0, 1))...)
	} else {
		body = append(body, u2(0)...)
	}
	return b.attribute("Code", body)
}

func (b *ClassBuilder) attribute(name string, body []byte) []byte {
	out := u2(b.Utf8(name))
	out = append(out, u4(uint32(len(body)))...)
	return append(out, body...)
}

// Bytes serialises the class file.
func (b *ClassBuilder) Bytes() []byte {
	out := u4(0xCAFEBABE)
	out = append(out, u2(b.Minor)...)
	out = append(out, u2(b.Major)...)
	out = append(out, u2(b.next)...)
	out = append(out, b.pool...)
	out = append(out, u2(0x0021)...)
	out = append(out, u2(b.thisClass)...)
	out = append(out, u2(b.superClass)...)
	out = append(out, u2(uint16(len(b.interfaces)))...)
	for _, i := range b.interfaces {
		out = append(out, u2(i)...)
	}
	out = appendTable(out, b.fields)
	out = appendTable(out, b.methods)
	out = appendTable(out, b.attributes)
	return out
}

func appendTable(out []byte, rows [][]byte) []byte {
	out = append(out, u2(uint16(len(rows)))...)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func u4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}
