package alphabet

import (
	"fmt"
	"strings"

	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// Alphabet is the ordered set of accepted characters. Each character is a
// single byte; its position in the set is the dense index used as a
// histogram coordinate.
type Alphabet struct {
	symbols []byte
	index   [256]int16 // -1 when the byte is not accepted
}

// New builds an alphabet from chars, keeping the first occurrence of each
// character. Characters outside the single-byte range are rejected.
func New(chars []rune) (*Alphabet, error) {
	a := &Alphabet{}
	for i := range a.index {
		a.index[i] = -1
	}

	for _, r := range chars {
		if r < 0 || r > 0xFF {
			return nil, fmt.Errorf("%w: character %q does not fit in one byte", internalerr.ErrInvalidInput, r)
		}
		b := byte(r)
		if a.index[b] >= 0 {
			continue
		}
		a.index[b] = int16(len(a.symbols))
		a.symbols = append(a.symbols, b)
	}

	if len(a.symbols) == 0 {
		return nil, fmt.Errorf("%w: empty alphabet", internalerr.ErrInvalidInput)
	}
	return a, nil
}

// Parse reads an alphabet from its serialized form. Both a plain run of
// characters ("abc") and a comma separated list ("a,b,c") are accepted; a
// comma is only treated as a separator when every field is one character.
func Parse(s string) (*Alphabet, error) {
	if strings.Contains(s, ",") {
		fields := strings.Split(s, ",")
		chars := make([]rune, 0, len(fields))
		listForm := true
		for _, f := range fields {
			rs := []rune(f)
			if len(rs) != 1 {
				listForm = false
				break
			}
			chars = append(chars, rs[0])
		}
		if listForm {
			return New(chars)
		}
	}
	return New([]rune(s))
}

// Index returns the dense index of b and whether b is accepted.
func (a *Alphabet) Index(b byte) (int, bool) {
	i := a.index[b]
	return int(i), i >= 0
}

// Contains reports whether b is an accepted character.
func (a *Alphabet) Contains(b byte) bool {
	return a.index[b] >= 0
}

// ContainsAll reports whether every byte of window is accepted.
func (a *Alphabet) ContainsAll(window []byte) bool {
	for _, b := range window {
		if a.index[b] < 0 {
			return false
		}
	}
	return true
}

// Len returns the number of accepted characters.
func (a *Alphabet) Len() int { return len(a.symbols) }

// Symbol returns the character at dense index i.
func (a *Alphabet) Symbol(i int) byte { return a.symbols[i] }

// Symbols returns a copy of the ordered characters.
func (a *Alphabet) Symbols() []byte {
	out := make([]byte, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// String returns the serialized alphabet: the characters in index order,
// each byte mapped to the code point of the same value.
func (a *Alphabet) String() string {
	var sb strings.Builder
	for _, b := range a.symbols {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
