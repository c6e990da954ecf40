// Package classfile parses the structure of compiled JVM class files far
// enough to locate the Code attribute of every method.
//
// Only what is needed to skip over the constant pool, fields and attributes
// is decoded. Utf8 constants are read back lazily so attribute names can be
// matched and methods labelled in reports.
package classfile

import "fmt"

// Magic is the fixed marker at the start of every class file.
const Magic uint32 = 0xCAFEBABE

// codeAttributeName is the attribute that carries a method's bytecode.
const codeAttributeName = "Code"

// Method access flags used for labelling.
// See https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.6
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSynchronized uint16 = 0x0020
	AccBridge       uint16 = 0x0040
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
)

// ClassFile is the parsed top-level structure.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   int
	Fields       int
	Methods      []Method
	Attributes   int
}

// Method is one entry of the methods table.
type Method struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Name            string
	Descriptor      string
	Code            *CodeAttribute // nil for abstract and native methods
}

// CodeAttribute holds a method's bytecode and sizing.
// See https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.7.3
type CodeAttribute struct {
	MaxStack             uint16
	MaxLocals            uint16
	Code                 []byte
	ExceptionTableLength uint16
	Attributes           int
}

// ClassName returns the internal name of this class, or "" if it cannot be
// resolved.
func (cf *ClassFile) ClassName() string {
	name, err := cf.ConstantPool.ClassName(cf.ThisClass)
	if err != nil {
		return ""
	}
	return name
}

// Signature returns name+descriptor, e.g. "main([Ljava/lang/String;)V".
func (m *Method) Signature() string {
	return m.Name + m.Descriptor
}

// Flags renders the access flags in declaration order.
func (m *Method) Flags() []string {
	var flags []string
	for _, f := range methodFlagNames {
		if m.AccessFlags&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	return flags
}

var methodFlagNames = []struct {
	bit  uint16
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccBridge, "bridge"},
	{AccVarargs, "varargs"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
	{AccStrict, "strict"},
	{AccSynthetic, "synthetic"},
}

// Parse decodes data as a class file.
//
// The version is recorded but not enforced. Any count or length that would
// run past the end of data yields ErrMalformedStructure.
func Parse(data []byte) (*ClassFile, error) {
	if len(data) == 0 {
		return nil, newError(ErrInvalidInput, 0, "empty class file")
	}

	c := NewCursor(data)
	magic, err := c.ReadU4()
	if err != nil || magic != Magic {
		return nil, &Error{Kind: ErrNotAClassFile, Offset: 0, Msg: fmt.Sprintf("magic is 0x%08X, want 0x%08X", magic, Magic), Err: err}
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = c.ReadU2(); err != nil {
		return nil, malformed(err, c.Offset(), "minor version")
	}
	if cf.MajorVersion, err = c.ReadU2(); err != nil {
		return nil, malformed(err, c.Offset(), "major version")
	}

	poolCount, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, c.Offset(), "constant pool count")
	}
	if cf.ConstantPool, err = ReadConstantPool(c, poolCount); err != nil {
		return nil, err
	}

	if cf.AccessFlags, err = c.ReadU2(); err != nil {
		return nil, malformed(err, c.Offset(), "access flags")
	}
	if cf.ThisClass, err = c.ReadU2(); err != nil {
		return nil, malformed(err, c.Offset(), "this_class")
	}
	if cf.SuperClass, err = c.ReadU2(); err != nil {
		return nil, malformed(err, c.Offset(), "super_class")
	}

	interfaces, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, c.Offset(), "interfaces count")
	}
	if err := c.Skip(int(interfaces) * 2); err != nil {
		return nil, malformed(err, c.Offset(), fmt.Sprintf("interfaces table (%d entries)", interfaces))
	}
	cf.Interfaces = int(interfaces)

	fields, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, c.Offset(), "fields count")
	}
	for i := 0; i < int(fields); i++ {
		if err := skipMember(c, fmt.Sprintf("field %d", i)); err != nil {
			return nil, err
		}
	}
	cf.Fields = int(fields)

	methods, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, c.Offset(), "methods count")
	}
	// Each method needs at least 8 bytes; reject impossible counts up front.
	if int(methods)*8 > c.Remaining() {
		return nil, newError(ErrMalformedStructure, c.Offset(), "methods count %d exceeds remaining %d bytes", methods, c.Remaining())
	}
	cf.Methods = make([]Method, 0, methods)
	for i := 0; i < int(methods); i++ {
		m, err := readMethod(c, cf.ConstantPool, i)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}

	attrs, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, c.Offset(), "class attributes count")
	}
	for i := 0; i < int(attrs); i++ {
		if _, _, err := readAttribute(c, fmt.Sprintf("class attribute %d", i)); err != nil {
			return nil, err
		}
	}
	cf.Attributes = int(attrs)

	return cf, nil
}

// skipMember skips a field_info structure.
func skipMember(c *Cursor, what string) error {
	start := c.Offset()
	if err := c.Skip(6); err != nil {
		return malformed(err, start, what)
	}
	count, err := c.ReadU2()
	if err != nil {
		return malformed(err, start, what+" attributes count")
	}
	for j := 0; j < int(count); j++ {
		if _, _, err := readAttribute(c, fmt.Sprintf("%s attribute %d", what, j)); err != nil {
			return err
		}
	}
	return nil
}

// readAttribute reads an attribute_info header and returns its name index
// and body.
func readAttribute(c *Cursor, what string) (uint16, []byte, error) {
	start := c.Offset()
	nameIndex, err := c.ReadU2()
	if err != nil {
		return 0, nil, malformed(err, start, what)
	}
	length, err := c.ReadU4()
	if err != nil {
		return 0, nil, malformed(err, start, what+" length")
	}
	if int64(length) > int64(c.Remaining()) {
		return 0, nil, newError(ErrMalformedStructure, start, "%s declares %d bytes, %d remain", what, length, c.Remaining())
	}
	body, err := c.ReadBytes(int(length))
	if err != nil {
		return 0, nil, malformed(err, start, what)
	}
	return nameIndex, body, nil
}

func readMethod(c *Cursor, pool *ConstantPool, i int) (Method, error) {
	what := fmt.Sprintf("method %d", i)
	start := c.Offset()
	var m Method
	var err error
	if m.AccessFlags, err = c.ReadU2(); err != nil {
		return m, malformed(err, start, what)
	}
	if m.NameIndex, err = c.ReadU2(); err != nil {
		return m, malformed(err, start, what)
	}
	if m.DescriptorIndex, err = c.ReadU2(); err != nil {
		return m, malformed(err, start, what)
	}
	// Names are labels only; an unresolvable index leaves them empty.
	m.Name, _ = pool.Utf8(m.NameIndex)
	m.Descriptor, _ = pool.Utf8(m.DescriptorIndex)

	count, err := c.ReadU2()
	if err != nil {
		return m, malformed(err, start, what+" attributes count")
	}
	for j := 0; j < int(count); j++ {
		attrStart := c.Offset()
		nameIndex, body, err := readAttribute(c, fmt.Sprintf("%s attribute %d", what, j))
		if err != nil {
			return m, err
		}
		if m.Code != nil || !pool.equalsUtf8(nameIndex, codeAttributeName) {
			continue
		}
		// Body offsets are relative to the attribute; report absolute ones.
		code, err := parseCode(body, attrStart+6)
		if err != nil {
			return m, fmt.Errorf("%s (%s): %w", what, m.Name, err)
		}
		m.Code = code
	}
	return m, nil
}

// parseCode decodes the body of a Code attribute. base is the absolute
// offset of body within the class file, used for error reporting.
func parseCode(body []byte, base int) (*CodeAttribute, error) {
	c := NewCursor(body)
	code := &CodeAttribute{}
	var err error
	if code.MaxStack, err = c.ReadU2(); err != nil {
		return nil, malformed(err, base, "Code max_stack")
	}
	if code.MaxLocals, err = c.ReadU2(); err != nil {
		return nil, malformed(err, base+2, "Code max_locals")
	}
	length, err := c.ReadU4()
	if err != nil {
		return nil, malformed(err, base+4, "Code code_length")
	}
	if int64(length) > int64(c.Remaining()) {
		return nil, newError(ErrMalformedStructure, base+4, "code_length %d exceeds attribute body (%d bytes remain)", length, c.Remaining())
	}
	if code.Code, err = c.ReadBytes(int(length)); err != nil {
		return nil, malformed(err, base+8, "Code code array")
	}
	if code.ExceptionTableLength, err = c.ReadU2(); err != nil {
		return nil, malformed(err, base+c.Offset(), "Code exception_table_length")
	}
	if err := c.Skip(int(code.ExceptionTableLength) * 8); err != nil {
		return nil, malformed(err, base+c.Offset(), "Code exception table")
	}
	attrs, err := c.ReadU2()
	if err != nil {
		return nil, malformed(err, base+c.Offset(), "Code attributes count")
	}
	for i := 0; i < int(attrs); i++ {
		if _, _, err := readAttribute(c, fmt.Sprintf("Code attribute %d", i)); err != nil {
			return nil, err
		}
	}
	code.Attributes = int(attrs)
	return code, nil
}
