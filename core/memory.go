package core

import (
	"fmt"
)

// MemoryPermission is a bitset of access rights granted to a segment.
type MemoryPermission byte

const (
	PermNone    MemoryPermission = 0
	PermRead    MemoryPermission = 1 << 0
	PermWrite   MemoryPermission = 1 << 1
	PermExecute MemoryPermission = 1 << 2
)

// MemorySegment is a contiguous, permission-tagged region of address space.
type MemorySegment struct {
	Start       uint64
	Size        uint64
	Data        []byte
	Permissions MemoryPermission
	Name        string
}

// Memory is the byte-addressable, little-endian address space a Machine
// executes against. It is a flat collection of disjoint segments rather
// than one giant backing array, so a freshly constructed machine does not
// need to allocate the full 64-bit space up front.
type Memory struct {
	Segments    []*MemorySegment
	AccessCount uint64
	ReadCount   uint64
	WriteCount  uint64
}

// NewMemory creates a Memory with the default code/data/heap/stack layout.
// Programs loaded from an ELF file instead build their segments directly
// from the program headers and call AddSegment themselves.
func NewMemory() *Memory {
	m := &Memory{}
	m.AddSegment("code", CodeSegmentStart, CodeSegmentSize, PermRead|PermWrite|PermExecute)
	m.AddSegment("data", DataSegmentStart, DataSegmentSize, PermRead|PermWrite)
	m.AddSegment("heap", HeapSegmentStart, HeapSegmentSize, PermRead|PermWrite)
	m.AddSegment("stack", StackSegmentStart, StackSegmentSize, PermRead|PermWrite)
	return m
}

// AddSegment registers a new memory segment.
func (m *Memory) AddSegment(name string, start, size uint64, perm MemoryPermission) *MemorySegment {
	seg := &MemorySegment{
		Start:       start,
		Size:        size,
		Data:        make([]byte, size),
		Permissions: perm,
		Name:        name,
	}
	m.Segments = append(m.Segments, seg)
	return seg
}

func (m *Memory) findSegment(address uint64) (*MemorySegment, uint64, error) {
	for _, seg := range m.Segments {
		if address >= seg.Start && address < seg.Start+seg.Size {
			return seg, address - seg.Start, nil
		}
	}
	return nil, 0, fmt.Errorf("memory access violation: address 0x%016x is not mapped", address)
}

func (m *Memory) span(address uint64, n uint64) (*MemorySegment, uint64, error) {
	seg, offset, err := m.findSegment(address)
	if err != nil {
		return nil, 0, err
	}
	if offset+n > seg.Size {
		return nil, 0, fmt.Errorf("access of %d bytes at 0x%016x exceeds segment %q bounds", n, address, seg.Name)
	}
	return seg, offset, nil
}

// ReadByte reads one byte.
func (m *Memory) ReadByte(address uint64) (byte, error) {
	seg, offset, err := m.span(address, 1)
	if err != nil {
		return 0, err
	}
	if seg.Permissions&PermRead == 0 {
		return 0, fmt.Errorf("read permission denied for segment %q at 0x%016x", seg.Name, address)
	}
	m.AccessCount++
	m.ReadCount++
	return seg.Data[offset], nil
}

// WriteByte writes one byte.
func (m *Memory) WriteByte(address uint64, value byte) error {
	seg, offset, err := m.span(address, 1)
	if err != nil {
		return err
	}
	if seg.Permissions&PermWrite == 0 {
		return fmt.Errorf("write permission denied for segment %q at 0x%016x", seg.Name, address)
	}
	m.AccessCount++
	m.WriteCount++
	seg.Data[offset] = value
	return nil
}

// ReadN reads a little-endian unsigned value of byteWidth bytes (1, 2, 4, or 8).
func (m *Memory) ReadN(address uint64, byteWidth int) (uint64, error) {
	seg, offset, err := m.span(address, uint64(byteWidth))
	if err != nil {
		return 0, err
	}
	if seg.Permissions&PermRead == 0 {
		return 0, fmt.Errorf("read permission denied for segment %q at 0x%016x", seg.Name, address)
	}
	var value uint64
	for i := 0; i < byteWidth; i++ {
		value |= uint64(seg.Data[offset+uint64(i)]) << (8 * i)
	}
	m.AccessCount++
	m.ReadCount++
	return value, nil
}

// WriteN writes the low byteWidth bytes of value in little-endian order.
func (m *Memory) WriteN(address uint64, value uint64, byteWidth int) error {
	seg, offset, err := m.span(address, uint64(byteWidth))
	if err != nil {
		return err
	}
	if seg.Permissions&PermWrite == 0 {
		return fmt.Errorf("write permission denied for segment %q at 0x%016x", seg.Name, address)
	}
	for i := 0; i < byteWidth; i++ {
		seg.Data[offset+uint64(i)] = byte(value >> (8 * i))
	}
	m.AccessCount++
	m.WriteCount++
	return nil
}

// LoadBytes copies data into memory starting at address, byte by byte, so
// that partial writes fail with a precise offset in the error.
func (m *Memory) LoadBytes(address uint64, data []byte) error {
	for i, b := range data {
		if err := m.WriteByte(address+uint64(i), b); err != nil {
			return fmt.Errorf("failed to load byte at offset %d: %w", i, err)
		}
	}
	return nil
}

// GetBytes reads length bytes starting at address.
func (m *Memory) GetBytes(address uint64, length uint64) ([]byte, error) {
	result := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		b, err := m.ReadByte(address + i)
		if err != nil {
			return nil, fmt.Errorf("failed to read byte at offset %d: %w", i, err)
		}
		result[i] = b
	}
	return result, nil
}

// CheckExecutePermission reports whether address may be fetched from.
func (m *Memory) CheckExecutePermission(address uint64) error {
	seg, _, err := m.findSegment(address)
	if err != nil {
		return err
	}
	if seg.Permissions&PermExecute == 0 {
		return fmt.Errorf("execute permission denied for segment %q at 0x%016x", seg.Name, address)
	}
	return nil
}

// MakeCodeReadOnly strips write permission from every executable segment
// once a program has finished loading, so a wild store can't self-modify
// code. It identifies code by the execute permission bit rather than by
// segment name, since an ELF-loaded program's PT_LOAD segments are named
// "load0", "load1", ... rather than "code".
func (m *Memory) MakeCodeReadOnly() {
	for _, seg := range m.Segments {
		if seg.Permissions&PermExecute != 0 {
			seg.Permissions &^= PermWrite
		}
	}
}

// Reset zeroes every segment's backing bytes and the access counters.
func (m *Memory) Reset() {
	for _, seg := range m.Segments {
		for i := range seg.Data {
			seg.Data[i] = 0
		}
	}
	m.AccessCount = 0
	m.ReadCount = 0
	m.WriteCount = 0
}
