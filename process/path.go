package process

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// PointerWidth is the size in bytes of a pointer in the target process.
type PointerWidth int

const (
	Pointer32 PointerWidth = 4
	Pointer64 PointerWidth = 8
)

// ReadPath reads a value of type T at the end of a pointer path, using 64-bit pointers.
func ReadPath[T any](proc Process, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (T, error) {
	return ReadPathWidth[T](proc, Pointer64, base, offsets...)
}

// ReadPathWidth reads a value of type T at the end of a pointer path.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer, and then T is read from that address.
// If offsets is empty, it reads T from base.
func ReadPathWidth[T any](proc Process, width PointerWidth, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (T, error) {
	var zero T

	addr, err := ResolvePath(proc, width, base, offsets...)
	if err != nil {
		return zero, err
	}

	val, err := Read[T](proc, addr)
	if err != nil {
		return zero, fmt.Errorf("failed to read final value at 0x%x: %w", addr, err)
	}

	return val, nil
}

// ResolvePath follows every offset but the last as a pointer and returns the final address.
func ResolvePath(proc Process, width PointerWidth, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	currentAddr := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := currentAddr + ProcessMemoryAddress(offsets[i])

		ptrVal, err := ReadPointer(proc, width, ptrAddr)
		if err != nil {
			return 0, fmt.Errorf("failed to read pointer at offset %d (addr 0x%x): %w", i, ptrAddr, err)
		}

		if ptrVal == 0 {
			return 0, fmt.Errorf("pointer at offset %d (addr 0x%x) is null: %w", i, ptrAddr, ErrInvalidPointer)
		}

		currentAddr = ptrVal
	}

	if len(offsets) > 0 {
		currentAddr += ProcessMemoryAddress(offsets[len(offsets)-1])
	}

	return currentAddr, nil
}

// ReadPointer reads a pointer of the given width.
func ReadPointer(proc Process, width PointerWidth, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	switch width {
	case Pointer32:
		v, err := Read[uint32](proc, addr)
		return ProcessMemoryAddress(v), err
	case Pointer64:
		v, err := Read[uint64](proc, addr)
		return ProcessMemoryAddress(v), err
	default:
		return 0, fmt.Errorf("unsupported pointer width %d", width)
	}
}

// Read is a helper to read a single value of type T from memory.
// T must be a fixed-size type; the target is assumed little endian.
func Read[T any](proc Process, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := proc.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}

	copyTo(&t, data)
	return t, nil
}

// Write encodes v with the same layout Read expects and writes it at addr.
func Write[T any](proc Process, addr ProcessMemoryAddress, v T) error {
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	data := make([]byte, size)
	copy(data, src)
	return proc.WriteMemory(addr, data)
}

// ReadNTS reads a null-terminated string of at most maxLength bytes.
func ReadNTS(proc Process, addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", nil
	}

	data, err := proc.ReadMemory(addr, maxLength)
	if err != nil {
		return "", err
	}

	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}

	return string(data), nil
}

// PutPointer encodes a pointer of the given width into buf.
func PutPointer(buf []byte, width PointerWidth, v ProcessMemoryAddress) {
	if width == Pointer32 {
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
