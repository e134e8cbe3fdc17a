package security

import "testing"

func TestNewNumericCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewNumericCode(6)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit %q in code %q", c, code)
			}
		}
	}
}

func TestNewRandomStringUnique(t *testing.T) {
	a, err := NewRandomString(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewRandomString(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct random strings")
	}
}
