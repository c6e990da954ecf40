package classfile

import "fmt"

// Tag identifies the kind of a constant pool entry.
// See https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.4
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20

	// tagUnusable marks the slot following a Long or Double entry.
	tagUnusable Tag = 0
)

// tagWidths maps a tag to the size of its body (excluding the tag byte).
// Utf8 is variable width: the value here is only its length prefix.
var tagWidths = map[Tag]int{
	TagUtf8:               2,
	TagInteger:            4,
	TagFloat:              4,
	TagLong:               8,
	TagDouble:             8,
	TagClass:              2,
	TagString:             2,
	TagFieldref:           4,
	TagMethodref:          4,
	TagInterfaceMethodref: 4,
	TagNameAndType:        4,
	TagMethodHandle:       3,
	TagMethodType:         2,
	TagDynamic:            4,
	TagInvokeDynamic:      4,
	TagModule:             2,
	TagPackage:            2,
}

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if t == tagUnusable {
		return "(unusable)"
	}
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// IsWide reports whether the entry occupies two constant pool slots.
func (t Tag) IsWide() bool {
	return t == TagLong || t == TagDouble
}

// ConstantPoolEntry records where an entry lives and how wide it is.
// Values are not decoded; Offset points at the first body byte.
type ConstantPoolEntry struct {
	Tag    Tag
	Width  int // body size in bytes, including a Utf8 length prefix
	Offset int
}

// ConstantPool is indexed 1..Count-1; index 0 is never valid.
type ConstantPool struct {
	entries []ConstantPoolEntry
	data    []byte
}

// Count returns the declared constant_pool_count (entries + 1).
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Entry returns the entry at index i.
func (p *ConstantPool) Entry(i uint16) (ConstantPoolEntry, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return ConstantPoolEntry{}, newError(ErrMalformedStructure, 0, "constant pool index %d out of range [1,%d)", i, len(p.entries))
	}
	e := p.entries[i]
	if e.Tag == tagUnusable {
		return ConstantPoolEntry{}, newError(ErrMalformedStructure, 0, "constant pool index %d is the unusable half of a long/double", i)
	}
	return e, nil
}

// Utf8 returns the string value of a Utf8 entry.
// Modified UTF-8 sequences that are not valid UTF-8 are returned as-is.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	e, err := p.Entry(i)
	if err != nil {
		return "", err
	}
	if e.Tag != TagUtf8 {
		return "", newError(ErrMalformedStructure, e.Offset, "constant pool index %d is %s, want Utf8", i, e.Tag)
	}
	return string(p.data[e.Offset+2 : e.Offset+e.Width]), nil
}

// ClassName resolves a Class entry to its internal name.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	e, err := p.Entry(i)
	if err != nil {
		return "", err
	}
	if e.Tag != TagClass {
		return "", newError(ErrMalformedStructure, e.Offset, "constant pool index %d is %s, want Class", i, e.Tag)
	}
	nameIndex := uint16(p.data[e.Offset])<<8 | uint16(p.data[e.Offset+1])
	return p.Utf8(nameIndex)
}

// equalsUtf8 reports whether entry i is a Utf8 entry with exactly the bytes of s.
func (p *ConstantPool) equalsUtf8(i uint16, s string) bool {
	v, err := p.Utf8(i)
	return err == nil && v == s
}

// ReadConstantPool reads count-1 entries from c, which must be positioned
// just after the constant_pool_count field.
func ReadConstantPool(c *Cursor, count uint16) (*ConstantPool, error) {
	if count == 0 {
		return nil, newError(ErrMalformedStructure, c.Offset(), "constant_pool_count must be at least 1")
	}
	pool := &ConstantPool{
		entries: make([]ConstantPoolEntry, count),
		data:    c.data,
	}

	for i := 1; i < int(count); i++ {
		start := c.Offset()
		raw, err := c.ReadU1()
		if err != nil {
			return nil, malformed(err, start, fmt.Sprintf("constant pool entry %d", i))
		}
		tag := Tag(raw)
		width, ok := tagWidths[tag]
		if !ok {
			return nil, newError(ErrUnknownConstantTag, start, "tag %d at constant pool index %d", raw, i)
		}

		bodyOffset := c.Offset()
		if tag == TagUtf8 {
			length, err := c.ReadU2()
			if err != nil {
				return nil, malformed(err, bodyOffset, fmt.Sprintf("Utf8 length of constant %d", i))
			}
			if err := c.Skip(int(length)); err != nil {
				return nil, malformed(err, bodyOffset, fmt.Sprintf("Utf8 constant %d", i))
			}
			width = 2 + int(length)
		} else if err := c.Skip(width); err != nil {
			return nil, malformed(err, bodyOffset, fmt.Sprintf("%s constant %d", tag, i))
		}

		pool.entries[i] = ConstantPoolEntry{Tag: tag, Width: width, Offset: bodyOffset}

		if tag.IsWide() {
			// The following slot must exist but is unusable.
			i++
			if i >= int(count) {
				return nil, newError(ErrMalformedStructure, start, "%s constant %d has no room for its second slot", tag, i-1)
			}
			pool.entries[i] = ConstantPoolEntry{Tag: tagUnusable}
		}
	}

	return pool, nil
}
