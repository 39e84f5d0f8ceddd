package sigscan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"splitwatch/process"
)

var ErrBadPattern = errors.New("bad pattern")

// Pattern is a byte signature with per-byte wildcards
type Pattern struct {
	process.AOB
}

// Parse reads a pattern like "55 8B EC ?? FF". Bytes are hex and may be
// separated by spaces or commas; "?" and "??" match any byte.
func Parse(s string) (Pattern, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(parts) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty", ErrBadPattern)
	}

	pattern := make([]byte, len(parts))
	mask := make([]byte, len(parts))

	for i, part := range parts {
		if part == "??" || part == "?" {
			continue
		}

		val, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: invalid hex byte %q", ErrBadPattern, part)
		}
		pattern[i] = byte(val)
		mask[i] = 0xFF
	}

	aob, err := process.NewAOB(pattern, mask)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	return Pattern{AOB: aob}, nil
}

// MustParse is Parse for patterns written into the source
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Literal matches the bytes of b exactly
func Literal(b []byte) Pattern {
	mask := make([]byte, len(b))
	for i := range mask {
		mask[i] = 0xFF
	}
	pattern := make([]byte, len(b))
	copy(pattern, b)
	return Pattern{AOB: process.AOB{Pattern: pattern, Mask: mask}}
}

func (p Pattern) Len() int {
	return len(p.Pattern)
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.Pattern {
		if i > 0 {
			sb.WriteString(" ")
		}
		if p.Mask[i] == 0 {
			sb.WriteString("??")
		} else {
			sb.WriteString(strings.ToUpper(hex.EncodeToString(p.Pattern[i : i+1])))
		}
	}
	return sb.String()
}

// FindPattern returns the offset of the first match in data, or -1
func FindPattern(data []byte, p Pattern) int {
	matches := findPatternMatches(data, p, 1)
	if len(matches) == 0 {
		return -1
	}
	return matches[0]
}

// findPatternMatches scans byte by byte; limit <= 0 means no limit
func findPatternMatches(data []byte, p Pattern, limit int) []int {
	if !p.IsValid() || len(data) < len(p.Pattern) {
		return nil
	}

	var matches []int
	for i := 0; i <= len(data)-len(p.Pattern); i++ {
		if p.MatchAt(data, i) {
			matches = append(matches, i)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}

	return matches
}
