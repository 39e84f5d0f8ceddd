package process_blob

import (
	"splitwatch/process"
)

// ProcessBlob is one contiguous block of captured or synthetic memory
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) End() process.ProcessMemoryAddress {
	return p.baseaddress + process.ProcessMemoryAddress(len(p.data))
}

// Contains reports whether [addr, addr+size) lies inside the blob
func (p *ProcessBlob) Contains(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) bool {
	return addr >= p.baseaddress && uint64(addr)+uint64(size) <= uint64(p.End())
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if !p.Contains(addr, size) {
		return nil, process.ErrAddressNotMapped
	}
	offset := addr - p.baseaddress
	out := make([]byte, size)
	copy(out, p.data[offset:uint64(offset)+uint64(size)])
	return out, nil
}

func (p *ProcessBlob) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if !p.Contains(addr, process.ProcessMemorySize(len(data))) {
		return process.ErrAddressNotMapped
	}
	copy(p.data[addr-p.baseaddress:], data)
	return nil
}
