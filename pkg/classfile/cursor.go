package classfile

import (
	"encoding/binary"
	"fmt"
)

// Cursor is a sequential big-endian reader over a fixed byte buffer.
// Every read is bounds checked and fails with ErrTruncatedInput instead of
// panicking.
type Cursor struct {
	data   []byte
	offset int
}

// NewCursor creates a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.offset
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.offset
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedInput, n, c.offset, c.Remaining())
	}
	return nil
}

// ReadU1 reads one byte.
func (c *Cursor) ReadU1() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.offset]
	c.offset++
	return v, nil
}

// PeekU1 returns the next byte without advancing.
func (c *Cursor) PeekU1() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.data[c.offset], nil
}

// ReadU2 reads a big-endian uint16.
func (c *Cursor) ReadU2() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.data[c.offset:])
	c.offset += 2
	return v, nil
}

// ReadU4 reads a big-endian uint32.
func (c *Cursor) ReadU4() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.data[c.offset:])
	c.offset += 4
	return v, nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the
// underlying buffer and must not be modified.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.offset : c.offset+n : c.offset+n]
	c.offset += n
	return b, nil
}

// Skip advances n bytes without copying.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.offset += n
	return nil
}
