package alphabet

import (
	"errors"
	"testing"

	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

func TestNewDeduplicatesInOrder(t *testing.T) {
	a, err := New([]rune{'c', 'a', 'c', 'b', 'a'})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Len() != 3 {
		t.Fatalf("Expected 3 symbols, got %d", a.Len())
	}
	if got := a.String(); got != "cab" {
		t.Errorf("String() = %q, want %q", got, "cab")
	}

	for i, want := range []byte("cab") {
		idx, ok := a.Index(want)
		if !ok || idx != i {
			t.Errorf("Index(%q) = (%d, %v), want (%d, true)", want, idx, ok, i)
		}
		if a.Symbol(i) != want {
			t.Errorf("Symbol(%d) = %q, want %q", i, a.Symbol(i), want)
		}
	}
}

func TestMembership(t *testing.T) {
	a, err := New([]rune("ab"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for b := 0; b < 256; b++ {
		want := b == 'a' || b == 'b'
		if a.Contains(byte(b)) != want {
			t.Errorf("Contains(%d) = %v, want %v", b, !want, want)
		}
	}

	if !a.ContainsAll([]byte("abba")) {
		t.Error("ContainsAll should accept a window of accepted characters")
	}
	if a.ContainsAll([]byte("abc")) {
		t.Error("ContainsAll should reject a window with a foreign character")
	}
	if _, ok := a.Index(0xFF); ok {
		t.Error("Index should report 0xFF as not accepted")
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		chars []rune
	}{
		{name: "empty", chars: nil},
		{name: "multi-byte", chars: []rune{'a', 'ł'}},
		{name: "emoji", chars: []rune{'🙂'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.chars)
			if !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLatin1RoundTrip(t *testing.T) {
	a, err := New([]rune{'é', 'a'})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.Contains(0xE9) {
		t.Error("Latin-1 é should map to byte 0xE9")
	}

	b, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.String() != a.String() {
		t.Errorf("Parse(String()) = %q, want %q", b.String(), a.String())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "abc", want: "abc"},
		{input: "a,b,c", want: "abc"},
		{input: "a,b,a", want: "ab"},
		{input: ",", want: ","},
		{input: "ab,cd", want: "ab,cd"},
	}

	for _, tt := range tests {
		a, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.input, err)
		}
		if got := a.String(); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
