package process

import (
	"errors"
	"fmt"
)

// ProcessMemoryAddress is an address inside the target, which may be a
// 32-bit process even when splitwatch itself is 64-bit
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Offset returns pma moved by n bytes in either direction
func (pma ProcessMemoryAddress) Offset(n int) ProcessMemoryAddress {
	if n < 0 {
		return pma - ProcessMemoryAddress(-n)
	}
	return pma + ProcessMemoryAddress(n)
}

type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

var errAOBShape = errors.New("pattern and mask must be non-empty and of the same length")

// AOB is a byte signature. A mask byte of 0xFF requires an exact match and
// 0x00 accepts anything.
type AOB struct {
	Pattern []byte
	Mask    []byte
}

func (aob AOB) IsValid() bool {
	return len(aob.Pattern) > 0 && len(aob.Pattern) == len(aob.Mask)
}

// MatchAt reports whether the signature matches data starting at i.
// The caller guarantees i+len(Pattern) <= len(data).
func (aob AOB) MatchAt(data []byte, i int) bool {
	for j, m := range aob.Mask {
		if m != 0 && data[i+j]&m != aob.Pattern[j]&m {
			return false
		}
	}
	return true
}

// Wildcards counts the bytes the signature does not pin down
func (aob AOB) Wildcards() int {
	n := 0
	for _, m := range aob.Mask {
		if m == 0 {
			n++
		}
	}
	return n
}

func NewAOB(pattern, mask []byte) (AOB, error) {
	aob := AOB{Pattern: pattern, Mask: mask}
	if !aob.IsValid() {
		return AOB{}, errAOBShape
	}
	return aob, nil
}
